// Copyright 2025 reelrec Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads and validates the TOML configuration file.
package config

import (
	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/reelrec-io/reelrec/base/log"
	"github.com/reelrec-io/reelrec/merge"
	"github.com/reelrec-io/reelrec/model"
	"github.com/reelrec-io/reelrec/resolve"
)

// Config is the engine configuration.
type Config struct {
	Scales   ScalesConfig   `toml:"scales"`
	Resolver ResolverConfig `toml:"resolver"`
	SVD      SVDConfig      `toml:"svd"`
	KNN      KNNConfig      `toml:"knn"`
	Eval     EvalConfig     `toml:"eval"`
}

// ScalesConfig declares the rating scale of each source. Scales are explicit
// configuration, never inferred from the data.
type ScalesConfig struct {
	Rating    merge.ScaleBounds `toml:"rating"`
	Benchmark merge.ScaleBounds `toml:"benchmark"`
	Target    merge.ScaleBounds `toml:"target"`
}

// ResolverConfig tunes fuzzy title matching.
type ResolverConfig struct {
	TitleThreshold float64 `toml:"title_threshold" validate:"gte=0,lte=1"`
	YearTolerance  int     `toml:"year_tolerance" validate:"gte=0"`
}

// SVDConfig holds the matrix factorization hyper-parameters.
type SVDConfig struct {
	NFactors    int     `toml:"n_factors" validate:"gt=0"`
	NEpochs     int     `toml:"n_epochs" validate:"gt=0"`
	Lr          float64 `toml:"lr" validate:"gt=0"`
	Reg         float64 `toml:"reg" validate:"gte=0"`
	Patience    int     `toml:"patience" validate:"gt=0"`
	InitStdDev  float64 `toml:"init_std_dev" validate:"gt=0"`
	RandomState int64   `toml:"random_state"`
}

// KNNConfig holds the neighborhood model hyper-parameters.
type KNNConfig struct {
	K          int    `toml:"k" validate:"gt=0"`
	Similarity string `toml:"similarity" validate:"oneof=cosine pearson"`
	UserBased  bool   `toml:"user_based"`
	MinOverlap int    `toml:"min_overlap" validate:"gt=0"`
}

// EvalConfig controls the train/test split and evaluation.
type EvalConfig struct {
	TestFraction float64 `toml:"test_fraction" validate:"gt=0,lt=1"`
	Seed         int64   `toml:"seed"`
	Jobs         int     `toml:"jobs" validate:"gt=0"`
	TopN         int     `toml:"top_n" validate:"gt=0"`
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return &Config{
		Scales: ScalesConfig{
			Rating:    merge.ScaleBounds{Min: 0.5, Max: 5},
			Benchmark: merge.ScaleBounds{Min: 1, Max: 10},
			Target:    merge.ScaleBounds{Min: 0.5, Max: 5},
		},
		Resolver: ResolverConfig{
			TitleThreshold: 0.85,
			YearTolerance:  1,
		},
		SVD: SVDConfig{
			NFactors:    50,
			NEpochs:     100,
			Lr:          0.005,
			Reg:         0.02,
			Patience:    5,
			InitStdDev:  0.1,
			RandomState: 42,
		},
		KNN: KNNConfig{
			K:          40,
			Similarity: model.SimilarityCosine,
			UserBased:  true,
			MinOverlap: 1,
		},
		Eval: EvalConfig{
			TestFraction: 0.2,
			Seed:         42,
			Jobs:         1,
			TopN:         10,
		},
	}
}

// LoadConfig loads the configuration from a TOML file. Missing keys keep
// their defaults; invalid values fail fast.
func LoadConfig(path string) (*Config, error) {
	conf := NewConfig()
	if _, err := toml.DecodeFile(path, conf); err != nil {
		return nil, errors.Annotatef(err, "failed to load config %v", path)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("load config", zap.String("path", path))
	return conf, nil
}

// Validate checks value ranges across all sections.
func (conf *Config) Validate() error {
	return errors.Trace(validator.New().Struct(conf))
}

// MergeConfig converts the scale section for the merger.
func (conf *Config) MergeConfig() *merge.Config {
	return &merge.Config{
		RatingScale:    conf.Scales.Rating,
		BenchmarkScale: conf.Scales.Benchmark,
		TargetScale:    conf.Scales.Target,
	}
}

// ResolverOptions converts the resolver section for the identity resolver.
func (conf *Config) ResolverOptions() *resolve.Options {
	return &resolve.Options{
		TitleThreshold: conf.Resolver.TitleThreshold,
		YearTolerance:  conf.Resolver.YearTolerance,
	}
}

// SVDParams converts the SVD section into hyper-parameters.
func (conf *Config) SVDParams() model.Params {
	return model.Params{
		model.NFactors:    conf.SVD.NFactors,
		model.NEpochs:     conf.SVD.NEpochs,
		model.Lr:          conf.SVD.Lr,
		model.Reg:         conf.SVD.Reg,
		model.Patience:    conf.SVD.Patience,
		model.InitStdDev:  conf.SVD.InitStdDev,
		model.RandomState: conf.SVD.RandomState,
	}
}

// KNNParams converts the KNN section into hyper-parameters.
func (conf *Config) KNNParams() model.Params {
	return model.Params{
		model.K:           conf.KNN.K,
		model.Similarity:  conf.KNN.Similarity,
		model.UserBased:   conf.KNN.UserBased,
		model.MinOverlap:  conf.KNN.MinOverlap,
		model.RandomState: conf.SVD.RandomState,
	}
}
