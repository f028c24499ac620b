/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package shapes

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// This file implements shape assertions, used to document and check the shapes
// flowing through the augmentation pipeline.
//
// The `Check` variations return an error, the `Assert` variations panic with an
// exception -- shape violations are not recoverable (see package augment).

// CheckDims checks that the shape has the given dimensions and rank.
// A value of -1 in dimensions means it can take any value and is not checked.
func (s Shape) CheckDims(dimensions ...int) error {
	if s.Rank() != len(dimensions) {
		return errors.Errorf("shape (%s) has rank %d, wanted rank %d", s, s.Rank(), len(dimensions))
	}
	for axis, wantDim := range dimensions {
		if wantDim != -1 && s.Dimensions[axis] != wantDim {
			return errors.Errorf("shape (%s) axis %d has dimension %d, wanted %d",
				s, axis, s.Dimensions[axis], wantDim)
		}
	}
	return nil
}

// AssertDims checks that the shape has the given dimensions and rank.
// A value of -1 in dimensions means it can take any value and is not checked.
// It panics if the check fails.
func (s Shape) AssertDims(dimensions ...int) {
	if err := s.CheckDims(dimensions...); err != nil {
		exceptions.Panicf("%+v", err)
	}
}

// CheckRank checks that the shape has the given rank.
func (s Shape) CheckRank(rank int) error {
	if s.Rank() != rank {
		return errors.Errorf("shape (%s) has rank %d, wanted rank %d", s, s.Rank(), rank)
	}
	return nil
}

// AssertRank checks that the shape has the given rank. It panics if the check fails.
func (s Shape) AssertRank(rank int) {
	if err := s.CheckRank(rank); err != nil {
		exceptions.Panicf("%+v", err)
	}
}

// CheckDims checks that the shape of the given object has the given dimensions and rank.
// A value of -1 in dimensions means it can take any value and is not checked.
func CheckDims(shaped HasShape, dimensions ...int) error {
	return shaped.Shape().CheckDims(dimensions...)
}

// AssertDims checks that the shape of the given object has the given dimensions
// and rank. A value of -1 in dimensions means it can take any value and is not
// checked. It panics if the check fails.
func AssertDims(shaped HasShape, dimensions ...int) {
	shaped.Shape().AssertDims(dimensions...)
}

// CheckRank checks that the shape of the given object has the given rank.
func CheckRank(shaped HasShape, rank int) error {
	return shaped.Shape().CheckRank(rank)
}

// AssertRank checks that the shape of the given object has the given rank.
// It panics if the check fails.
func AssertRank(shaped HasShape, rank int) {
	shaped.Shape().AssertRank(rank)
}
