package augment

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/medrecon/augment/transforms"
	"github.com/medrecon/augment/transforms/builtin"
)

// ScenarioKind selects which augmentation scenario of a Config to build.
type ScenarioKind string

const (
	// ScenarioAugTrain is the supervised-training scenario: schedulers and
	// multi-worker progress apply.
	ScenarioAugTrain ScenarioKind = "aug_train"
	// ScenarioConsistency is the consistency-regularization scenario:
	// probabilities are fixed, no schedulers.
	ScenarioConsistency ScenarioKind = "consistency"
)

// Config is the on-disk augmentation configuration, typically loaded from
// YAML with LoadConfig.
type Config struct {
	Seed       int64 `koanf:"seed"`
	BatchSize  int   `koanf:"batch_size"`
	NumWorkers int   `koanf:"num_workers"`

	AugTrain    ScenarioConfig `koanf:"aug_train"`
	Consistency ScenarioConfig `koanf:"consistency"`
}

// ScenarioConfig describes one augmentation scenario: the transform pipeline
// and its scenario-level switches.
type ScenarioConfig struct {
	Transforms []TransformConfig `koanf:"transforms"`

	// AugSensitivityMaps defaults to true when omitted.
	AugSensitivityMaps          *bool            `koanf:"aug_sensitivity_maps"`
	ApplyMaskAfterInvariantTfms bool             `koanf:"apply_mask_after_invariant_tfms"`
	SchedulerP                  SchedulerPConfig `koanf:"scheduler_p"`
}

// TransformConfig declares one pipeline entry by registered name, its
// trigger probability and any transform-specific parameters.
type TransformConfig struct {
	Name   string         `koanf:"name"`
	P      float64        `koanf:"p"`
	Params map[string]any `koanf:"params"`
}

// SchedulerPConfig configures a linear warmup of every generator's trigger
// probability, from zero at delay_samples up to the configured p after
// warmup_samples more. A zero warmup (or Ignore) leaves probabilities fixed.
type SchedulerPConfig struct {
	Ignore        bool  `koanf:"ignore"`
	DelaySamples  int64 `koanf:"delay_samples"`
	WarmupSamples int64 `koanf:"warmup_samples"`
}

// envPrefix maps MEDRECON_AUG__SEED style variables over the file values.
const envPrefix = "MEDRECON_"

// LoadConfig reads the YAML configuration at path and overlays any
// MEDRECON_-prefixed environment variables, with "__" as the nesting
// separator (MEDRECON_AUG_TRAIN__SCHEDULER_P__IGNORE=true).
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "loading augmentation config %q", path)
	}
	if err := k.Load(env.Provider(envPrefix, ".", func(key string) string {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, errors.Wrap(err, "loading environment overrides")
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing augmentation config %q", path)
	}
	return &cfg, nil
}

// FromConfig builds the Augmentor for one scenario of cfg, wiring transforms,
// probability warmup schedulers and, for the training scenario with loader
// workers, the shared progress counter. The returned WorkerProgress is nil
// unless workers are configured; the caller owns handing it to each worker's
// Augmentor copy.
func FromConfig(cfg *Config, scenario ScenarioKind) (*Augmentor, *transforms.WorkerProgress, error) {
	var sc ScenarioConfig
	switch scenario {
	case ScenarioAugTrain:
		sc = cfg.AugTrain
	case ScenarioConsistency:
		sc = cfg.Consistency
	default:
		return nil, nil, errors.Errorf("unknown augmentation scenario %q", scenario)
	}

	items := make([]transforms.Item, 0, len(sc.Transforms))
	for _, tc := range sc.Transforms {
		item, err := buildTransform(tc)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, item)
	}

	aug := New(items...).
		ApplyMaskAfterInvariantTfms(sc.ApplyMaskAfterInvariantTfms)
	if sc.AugSensitivityMaps != nil {
		aug.AugSensitivityMaps(*sc.AugSensitivityMaps)
	}

	useSchedulers := scenario == ScenarioAugTrain && !sc.SchedulerP.Ignore && sc.SchedulerP.WarmupSamples > 0
	if useSchedulers {
		for _, item := range items {
			s, ok := item.(transforms.Schedulable)
			if !ok {
				continue
			}
			p, _ := s.ParamValues(false)[transforms.ParamP].(float64)
			s.RegisterSchedulers(transforms.NewWarmupScheduler(
				transforms.ParamP, sc.SchedulerP.DelaySamples, sc.SchedulerP.WarmupSamples, 0, p))
		}
	}

	var progress *transforms.WorkerProgress
	if scenario == ScenarioAugTrain && cfg.NumWorkers > 0 {
		progress = transforms.NewWorkerProgress(cfg.BatchSize, cfg.NumWorkers)
		for _, s := range aug.Schedulers() {
			s.SetIterFn(progress.Samples)
		}
		aug.WithProgress(progress)
	}

	if cfg.Seed != 0 {
		aug.Seed(cfg.Seed)
	}
	klog.V(1).Infof("augment: built %s pipeline with %d transforms (schedulers=%v, workers=%d)",
		scenario, len(items), useSchedulers, cfg.NumWorkers)
	return aug, progress, nil
}

// buildTransform instantiates one registered transform from its config
// entry. Unknown parameter keys are ignored; YAML numbers arrive as float64.
func buildTransform(tc TransformConfig) (transforms.Item, error) {
	switch tc.Name {
	case "random_flip":
		return builtin.NewRandomFlip(tc.P, intsParam(tc.Params, "axes")...), nil
	case "random_rot90":
		return builtin.NewRandomRot90(tc.P, intsParam(tc.Params, "ks")...), nil
	case "random_noise":
		return builtin.NewRandomNoise(tc.P,
			floatParam(tc.Params, "sigma_low", 0.01),
			floatParam(tc.Params, "sigma_high", 0.1)), nil
	case "random_motion":
		return builtin.NewRandomMotion(tc.P,
			intParam(tc.Params, "max_shots", 4),
			floatParam(tc.Params, "std", 3.0)), nil
	}
	return nil, errors.Errorf("unknown transform %q in augmentation config", tc.Name)
}

func floatParam(params map[string]any, key string, def float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

func intParam(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

func intsParam(params map[string]any, key string) []int {
	raw, ok := params[key].([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		switch n := v.(type) {
		case int:
			out = append(out, n)
		case float64:
			out = append(out, int(n))
		}
	}
	return out
}
