// augmentor_demo runs a configured augmentation pipeline over synthetic
// multi-coil k-space batches and reports realized transforms, scheduled
// parameter values and tensor memory usage.
//
// Example:
//
//	augmentor_demo -batches 100 -batch_size 4 -coils 8 -params
//	augmentor_demo -config augment.yaml -scenario aug_train -params
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"slices"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/medrecon/augment/augment"
	"github.com/medrecon/augment/transforms"
	"github.com/medrecon/augment/transforms/builtin"
	"github.com/medrecon/augment/types/tensors"
)

var (
	flagConfig   = flag.String("config", "", "YAML augmentation config. When empty, a built-in demo pipeline is used.")
	flagScenario = flag.String("scenario", "aug_train", "Scenario to build from the config: aug_train or consistency.")

	flagBatches   = flag.Int("batches", 50, "Number of synthetic batches to augment.")
	flagBatchSize = flag.Int("batch_size", 2, "Batch size of the synthetic k-space.")
	flagHeight    = flag.Int("height", 64, "Height (frequency-encode lines) of the synthetic k-space.")
	flagWidth     = flag.Int("width", 64, "Width (phase-encode lines) of the synthetic k-space.")
	flagCoils     = flag.Int("coils", 8, "Number of receive coils.")
	flagSeed      = flag.Int64("seed", 42, "Seed for the synthetic data and the pipeline generators.")
	flagAccel     = flag.Float64("accel", 4, "Acceleration factor of the regenerated undersampling mask.")

	flagParams  = flag.Bool("params", false, "Print the scheduled generator parameters after the run.")
	flagSummary = flag.Bool("summary", true, "Print the tensor shape/memory summary after the run.")
)

func main() {
	flag.Parse()
	if flag.NArg() > 0 {
		klog.Errorf("Unexpected arguments %v. See 'augmentor_demo -help'.", flag.Args())
		os.Exit(1)
	}

	aug := buildAugmentor()
	aug.Seed(*flagSeed)

	kspace, maps := syntheticBatch(*flagBatchSize, *flagHeight, *flagWidth, *flagCoils, *flagSeed)
	maskGen := augment.NewUniformMaskGen(*flagSeed, *flagAccel, *flagWidth/16)

	bar := progressbar.Default(int64(*flagBatches), "augmenting")
	var lastEq, lastInv []string
	var res augment.Result
	for range *flagBatches {
		var eq, inv *transforms.TransformList
		res, eq, inv = applyOnce(aug, kspace, maps, maskGen)
		lastEq, lastInv = eq.Names(), inv.Names()
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Println()

	fmt.Println(titleStyle.Render("Last Batch"))
	table := newPlainTable(false)
	table.Row("equivariant", fmt.Sprintf("%v", lastEq))
	table.Row("invariant", fmt.Sprintf("%v", lastInv))
	fmt.Println(table.Render())

	if *flagSummary {
		printSummary(res)
	}
	if *flagParams {
		printParams(aug)
	}
}

func buildAugmentor() *augment.Augmentor {
	if *flagConfig != "" {
		cfg := must.M1(augment.LoadConfig(*flagConfig))
		aug, _, err := augment.FromConfig(cfg, augment.ScenarioKind(*flagScenario))
		must.M(err)
		return aug
	}
	return augment.New(
		builtin.NewRandomFlip(0.5),
		builtin.NewRandomRot90(0.5),
		builtin.NewRandomNoise(0.5, 0.01, 0.1),
		builtin.NewRandomMotion(0.3, 4, 3.0),
	).ApplyMaskAfterInvariantTfms(true)
}

func applyOnce(aug *augment.Augmentor, kspace, maps *tensors.Tensor, maskGen augment.MaskGenFunc) (augment.Result, *transforms.TransformList, *transforms.TransformList) {
	return aug.Apply(kspace).
		Maps(maps).
		MaskGen(maskGen).
		Normalizer(augment.RMSNormalizer{}).
		Done()
}

// syntheticBatch draws a white complex-gaussian k-space
// [batch, height, width, coils] and unit-power constant sensitivity maps
// [batch, height, width, coils, 1].
func syntheticBatch(batch, height, width, coils int, seed int64) (kspace, maps *tensors.Tensor) {
	rng := rand.New(rand.NewSource(seed))
	k := make([]complex64, batch*height*width*coils)
	for i := range k {
		k[i] = complex64(complex(rng.NormFloat64(), rng.NormFloat64()))
	}
	m := make([]complex64, batch*height*width*coils)
	coilMag := complex64(complex(1/math.Sqrt(float64(coils)), 0))
	for i := range m {
		m[i] = coilMag
	}
	return tensors.FromFlatDataAndDimensions(k, batch, height, width, coils),
		tensors.FromFlatDataAndDimensions(m, batch, height, width, coils, 1)
}

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row == 1 {
				s = headerRowStyle
				return
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

func printSummary(res augment.Result) {
	fmt.Println(titleStyle.Render("Tensors"))
	table := newPlainTable(true)
	table.Row("tensor", "shape", "memory")
	row := func(name string, t *tensors.Tensor) {
		if t == nil {
			return
		}
		table.Row(name, t.Shape().String(), humanize.Bytes(uint64(t.Memory())))
	}
	row("kspace", res.KSpace)
	row("maps", res.Maps)
	row("target", res.Target)
	row("mean", res.Mean)
	row("std", res.Std)
	fmt.Println(table.Render())
}

func printParams(aug *augment.Augmentor) {
	fmt.Println(titleStyle.Render("Generator Parameters"))
	table := newPlainTable(true)
	table.Row("parameter", "value")
	params := aug.TfmGenParams(false)
	for _, key := range sortedKeys(params) {
		table.Row(key, fmt.Sprintf("%v", params[key]))
	}
	fmt.Println(table.Render())
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
