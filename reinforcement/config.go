package reinforcement

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// OuterConfig is the envelope of a config file. Its definition, under "def", depends on the kind.
type OuterConfig struct {
	Kind string `mapstructure:"kind"`
}

// TrainingConfig encodes the algorithmic and training parameters outside of code:
// learning rate, discount, exploration epsilon, and when to stop.
type TrainingConfig struct {
	// HyperParams is a key-val pair of param names and their value.
	HyperParams []HyperParameter `yaml:"hyperParams"`
	// Algorithm is an alg selector.
	Algorithm map[string]string `yaml:"algorithm"`
	// TrainingDeadline is a duration after which training terminates.
	TrainingDeadline map[string]string `yaml:"trainingDeadline"`
	// Episodes is the maximum number of episodes to run, or unbounded if zero.
	Episodes int `yaml:"episodes"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

const TRAINING_KIND = "training"

// DefaultConfig returns the parameters used when no config file is given.
func DefaultConfig() *TrainingConfig {
	return &TrainingConfig{
		Algorithm: map[string]string{"name": "qlearning"},
	}
}

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// SetHyperParam overrides or adds a hyper parameter.
func (cfg *TrainingConfig) SetHyperParam(param string, val float64) {
	for i := range cfg.HyperParams {
		if cfg.HyperParams[i].Key == param {
			cfg.HyperParams[i].Val = val
			return
		}
	}
	cfg.HyperParams = append(cfg.HyperParams, HyperParameter{Key: param, Val: val})
}

// WithTrainingDeadline returns a context extended by the training deadline, if one is specified.
func (cfg *TrainingConfig) WithTrainingDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, fmt.Errorf("training deadline: %w", err)
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// FromYaml reads a training config. Viper validates the envelope; the definition is
// decoded from the file's own yaml, since viper folds the case of every key it reads.
func FromYaml(path string) (*TrainingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	vp := viper.New()
	vp.SetConfigType("yaml")
	if err = vp.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if outerConfig.Kind != TRAINING_KIND {
		return nil, fmt.Errorf("config %s: unexpected kind %q, want %q", path, outerConfig.Kind, TRAINING_KIND)
	}

	var envelope struct {
		Def yaml.Node `yaml:"def"`
	}
	if err = yaml.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	innerConfig := DefaultConfig()
	if envelope.Def.Kind == 0 {
		return innerConfig, nil
	}
	if err = envelope.Def.Decode(innerConfig); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return innerConfig, nil
}
