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

// Package merge joins resolved ratings and benchmark scores on canonical IDs
// into one tidy interaction table, normalizing every source to a common
// rating scale.
package merge

import (
	"sort"

	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/reelrec-io/reelrec/base/log"
	"github.com/reelrec-io/reelrec/resolve"
)

// ErrInvalidRating reports a rating outside its declared source scale.
// Out-of-range values are rejected at ingestion, never clamped silently.
var ErrInvalidRating = errors.New("rating outside the declared scale")

// ScaleBounds is the closed rating range of one source.
type ScaleBounds struct {
	Min float32 `toml:"min" validate:"ltfield=Max"`
	Max float32 `toml:"max"`
}

// Contains reports whether a rating is inside the scale.
func (scale ScaleBounds) Contains(rating float32) bool {
	return !math32.IsNaN(rating) && rating >= scale.Min && rating <= scale.Max
}

// Rescale linearly maps a rating from this scale onto the target scale. The
// scale parameters are explicit configuration, never inferred from data.
func (scale ScaleBounds) Rescale(rating float32, target ScaleBounds) float32 {
	if scale == target {
		return rating
	}
	ratio := (rating - scale.Min) / (scale.Max - scale.Min)
	return target.Min + ratio*(target.Max-target.Min)
}

// Config declares the rating scale of each source and the common target
// scale every rating is normalized to.
type Config struct {
	RatingScale    ScaleBounds
	BenchmarkScale ScaleBounds
	TargetScale    ScaleBounds
}

// NewConfig returns the default scales: MovieLens-style half-star ratings and
// a 1-10 benchmark, both normalized onto 0.5-5.0.
func NewConfig() *Config {
	return &Config{
		RatingScale:    ScaleBounds{Min: 0.5, Max: 5},
		BenchmarkScale: ScaleBounds{Min: 1, Max: 10},
		TargetScale:    ScaleBounds{Min: 0.5, Max: 5},
	}
}

func (config *Config) LoadDefaultIfNil() *Config {
	if config == nil {
		return NewConfig()
	}
	return config
}

// RawRating is an unresolved rating row from the rating source.
type RawRating struct {
	UserID    int64
	MovieID   int64 // rating-source movie ID
	Rating    float32
	Timestamp int64
}

// Interaction is one deduplicated, normalized rating keyed by canonical ID.
type Interaction struct {
	UserID    int64
	MovieID   int64 // canonical ID
	Rating    float32
	Timestamp int64
}

// BenchmarkScore is the normalized external benchmark value for one canonical
// movie. Used only for evaluation, never for training.
type BenchmarkScore struct {
	MovieID int64 // canonical ID
	Rating  float32
	Votes   int
}

// Stats counts rows lost or collapsed during the merge.
type Stats struct {
	DroppedRatings    int // rating rows whose movie failed to resolve
	Duplicates        int // extra (user, movie) rows collapsed by deduplication
	DroppedBenchmarks int // benchmark rows whose movie failed to resolve
}

// Result is the merged output: one tidy interaction table plus the benchmark
// table, both keyed by canonical IDs.
type Result struct {
	Interactions []Interaction
	Benchmark    map[int64]BenchmarkScore
	Stats        Stats
}

// Merge resolves, validates, normalizes and deduplicates the raw tables.
// Deduplication keeps the most recent rating per (user, movie); ratings with
// tied timestamps are averaged. Structural violations abort with
// ErrInvalidRating; resolution misses degrade to dropped-row counts.
func Merge(ratings []RawRating, benchmarks []resolve.RawBenchmark, table *resolve.Table, config *Config) (*Result, error) {
	config = config.LoadDefaultIfNil()
	result := &Result{Benchmark: make(map[int64]BenchmarkScore)}
	// resolve and normalize ratings
	resolved := make([]Interaction, 0, len(ratings))
	for _, row := range ratings {
		if !config.RatingScale.Contains(row.Rating) {
			return nil, errors.Annotatef(ErrInvalidRating, "user %d movie %d rating %v not in [%v, %v]",
				row.UserID, row.MovieID, row.Rating, config.RatingScale.Min, config.RatingScale.Max)
		}
		movieID, exist := table.ResolveRating(row.MovieID)
		if !exist {
			result.Stats.DroppedRatings++
			continue
		}
		resolved = append(resolved, Interaction{
			UserID:    row.UserID,
			MovieID:   movieID,
			Rating:    config.RatingScale.Rescale(row.Rating, config.TargetScale),
			Timestamp: row.Timestamp,
		})
	}
	result.Interactions, result.Stats.Duplicates = dedupe(resolved)
	// resolve and normalize benchmark scores
	for _, row := range benchmarks {
		if !config.BenchmarkScale.Contains(row.Rating) {
			return nil, errors.Annotatef(ErrInvalidRating, "benchmark movie %d rating %v not in [%v, %v]",
				row.MovieID, row.Rating, config.BenchmarkScale.Min, config.BenchmarkScale.Max)
		}
		movieID, exist := table.ResolveBenchmark(row)
		if !exist {
			result.Stats.DroppedBenchmarks++
			continue
		}
		score := BenchmarkScore{
			MovieID: movieID,
			Rating:  config.BenchmarkScale.Rescale(row.Rating, config.TargetScale),
			Votes:   row.Votes,
		}
		// one score per movie, the better-supported one wins
		if current, exist := result.Benchmark[movieID]; !exist || score.Votes > current.Votes {
			result.Benchmark[movieID] = score
		}
	}
	log.Logger().Info("merged datasets",
		zap.Int("interactions", len(result.Interactions)),
		zap.Int("benchmark_scores", len(result.Benchmark)),
		zap.Int("dropped_ratings", result.Stats.DroppedRatings),
		zap.Int("duplicates", result.Stats.Duplicates),
		zap.Int("dropped_benchmarks", result.Stats.DroppedBenchmarks))
	return result, nil
}

// dedupe collapses repeated (user, movie) ratings: the latest timestamp wins,
// timestamp ties average. Output order is (user, movie) ascending, hence
// deterministic for any input order.
func dedupe(interactions []Interaction) ([]Interaction, int) {
	sort.Slice(interactions, func(i, j int) bool {
		a, b := interactions[i], interactions[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.MovieID != b.MovieID {
			return a.MovieID < b.MovieID
		}
		return a.Timestamp < b.Timestamp
	})
	deduped := make([]Interaction, 0, len(interactions))
	duplicates := 0
	for begin := 0; begin < len(interactions); {
		end := begin
		for end < len(interactions) &&
			interactions[end].UserID == interactions[begin].UserID &&
			interactions[end].MovieID == interactions[begin].MovieID {
			end++
		}
		run := interactions[begin:end]
		latest := run[len(run)-1]
		sum, count := float32(0), 0
		for i := len(run) - 1; i >= 0 && run[i].Timestamp == latest.Timestamp; i-- {
			sum += run[i].Rating
			count++
		}
		latest.Rating = sum / float32(count)
		deduped = append(deduped, latest)
		duplicates += len(run) - 1
		begin = end
	}
	return deduped, duplicates
}
