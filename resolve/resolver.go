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

// Package resolve maps heterogeneous movie identifiers from the rating,
// metadata and benchmark sources onto one internal canonical ID.
package resolve

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/reelrec-io/reelrec/base/log"
)

// RawMovie is a movie row from the metadata source.
type RawMovie struct {
	MovieID int64
	Title   string
	Year    int
	Genres  []string
}

// RawBenchmark is an aggregate rating row from the external benchmark source.
type RawBenchmark struct {
	MovieID int64 // benchmark-source ID, 0 = unknown
	Title   string
	Year    int
	Rating  float32
	Votes   int
}

// Link is a cross-reference row tying a rating-source movie ID to its IDs in
// the metadata and benchmark sources. Zero means the foreign ID is unknown.
// Title and Year come from the rating source itself and feed fuzzy matching
// when a foreign ID is missing.
type Link struct {
	RatingID    int64
	MetadataID  int64
	BenchmarkID int64
	Title       string
	Year        int
}

// CanonicalMovie is one distinct film across all sources. Immutable after
// resolution.
type CanonicalMovie struct {
	ID          int64
	Title       string
	Year        int
	Genres      mapset.Set[string]
	RatingID    int64 // 0 = no rating-source ID (metadata-only record)
	MetadataID  int64
	BenchmarkID int64
}

// Options controls fuzzy matching.
type Options struct {
	// TitleThreshold is the minimum normalized-title similarity for a fuzzy
	// match, in (0, 1].
	TitleThreshold float64
	// YearTolerance is the maximum absolute release-year difference for a
	// fuzzy match.
	YearTolerance int
}

// NewOptions returns the default matching options.
func NewOptions() *Options {
	return &Options{
		TitleThreshold: 0.85,
		YearTolerance:  1,
	}
}

func (opts *Options) LoadDefaultIfNil() *Options {
	if opts == nil {
		return NewOptions()
	}
	return opts
}

// Stats counts resolution diagnostics.
type Stats struct {
	Ambiguities  int // fuzzy matches resolved by the lowest-canonical-ID rule
	MetadataOnly int // metadata rows without a rating-source counterpart
}

// Table is the resolved catalog. It is built once and read-only afterwards:
// downstream components receive it explicitly instead of sharing mutable
// lookup state.
type Table struct {
	Movies []CanonicalMovie // ordered by canonical ID, Movies[i].ID == i+1

	byRating    map[int64]int64
	byMetadata  map[int64]int64
	byBenchmark map[int64]int64
	normTitles  []string // normalized title per canonical movie, "" = untitled
	stats       Stats
	opts        *Options
}

// Resolve builds the canonical catalog from the cross-reference table and the
// metadata source. Canonical IDs are assigned 1..n over rating-source movie
// IDs in ascending order; metadata rows without a counterpart continue the
// sequence in ascending metadata ID order. The assignment is deterministic,
// so resolving the same inputs twice yields the same canonical IDs.
func Resolve(links []Link, movies []RawMovie, opts *Options) *Table {
	opts = opts.LoadDefaultIfNil()
	table := &Table{
		byRating:    make(map[int64]int64),
		byMetadata:  make(map[int64]int64),
		byBenchmark: make(map[int64]int64),
		opts:        opts,
	}
	// canonical skeletons from the cross-reference table
	links = lo.UniqBy(links, func(l Link) int64 { return l.RatingID })
	sort.Slice(links, func(i, j int) bool { return links[i].RatingID < links[j].RatingID })
	for _, link := range links {
		id := int64(len(table.Movies) + 1)
		table.Movies = append(table.Movies, CanonicalMovie{
			ID:          id,
			Title:       link.Title,
			Year:        link.Year,
			Genres:      mapset.NewSet[string](),
			RatingID:    link.RatingID,
			MetadataID:  link.MetadataID,
			BenchmarkID: link.BenchmarkID,
		})
		table.byRating[link.RatingID] = id
		if link.MetadataID != 0 {
			table.byMetadata[link.MetadataID] = id
		}
		if link.BenchmarkID != 0 {
			table.byBenchmark[link.BenchmarkID] = id
		}
		table.normTitles = append(table.normTitles, NormalizeTitle(link.Title))
	}
	// enrich from metadata: exact foreign-ID matches first, then fuzzy
	sorted := make([]RawMovie, len(movies))
	copy(sorted, movies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MovieID < sorted[j].MovieID })
	var unmatched []RawMovie
	for _, movie := range sorted {
		if id, exist := table.byMetadata[movie.MovieID]; exist {
			table.enrich(id, movie)
		} else {
			unmatched = append(unmatched, movie)
		}
	}
	for _, movie := range unmatched {
		if id := table.matchTitle(movie.Title, movie.Year); id != 0 && table.Movies[id-1].MetadataID == 0 {
			table.byMetadata[movie.MovieID] = id
			m := &table.Movies[id-1]
			m.MetadataID = movie.MovieID
			table.enrich(id, movie)
			continue
		}
		// keep as a metadata-only record, no ratings will ever attach
		id := int64(len(table.Movies) + 1)
		table.Movies = append(table.Movies, CanonicalMovie{
			ID:         id,
			Title:      movie.Title,
			Year:       movie.Year,
			Genres:     mapset.NewSet[string](movie.Genres...),
			MetadataID: movie.MovieID,
		})
		table.byMetadata[movie.MovieID] = id
		table.normTitles = append(table.normTitles, NormalizeTitle(movie.Title))
		table.stats.MetadataOnly++
	}
	log.Logger().Info("resolved catalog",
		zap.Int("movies", len(table.Movies)),
		zap.Int("metadata_only", table.stats.MetadataOnly),
		zap.Int("ambiguities", table.stats.Ambiguities))
	return table
}

// enrich fills a canonical record from its metadata row. The metadata title
// wins over the rating-source one, which usually embeds the year.
func (table *Table) enrich(id int64, movie RawMovie) {
	m := &table.Movies[id-1]
	if movie.Title != "" {
		m.Title = movie.Title
		table.normTitles[id-1] = NormalizeTitle(movie.Title)
	}
	if movie.Year != 0 {
		m.Year = movie.Year
	}
	for _, genre := range movie.Genres {
		m.Genres.Add(genre)
	}
}

// matchTitle fuzzy-matches a title and year against the titled part of the
// catalog. Candidates within the year tolerance and above the similarity
// threshold compete on similarity; an exact year beats a tolerated one at
// equal similarity; remaining ties pick the lowest canonical ID and are
// logged rather than raised. Returns 0 when nothing qualifies.
func (table *Table) matchTitle(title string, year int) int64 {
	normalized := NormalizeTitle(title)
	if normalized == "" {
		return 0
	}
	var (
		bestID   int64
		bestSim  float64
		bestYear bool
		tied     bool
	)
	for i, candidate := range table.normTitles {
		if candidate == "" {
			continue
		}
		movie := table.Movies[i]
		diff := movie.Year - year
		if diff < 0 {
			diff = -diff
		}
		if diff > table.opts.YearTolerance {
			continue
		}
		sim := TitleSimilarity(normalized, candidate)
		if sim < table.opts.TitleThreshold {
			continue
		}
		exactYear := diff == 0
		switch {
		case sim > bestSim || (sim == bestSim && exactYear && !bestYear):
			bestID, bestSim, bestYear, tied = movie.ID, sim, exactYear, false
		case sim == bestSim && exactYear == bestYear && bestID != 0:
			tied = true
		}
	}
	if tied {
		table.stats.Ambiguities++
		log.Logger().Warn("ambiguous title match",
			zap.String("title", title),
			zap.Int("year", year),
			zap.Int64("picked_canonical_id", bestID))
	}
	return bestID
}

// ResolveRating maps a rating-source movie ID to a canonical ID. Rating rows
// that fail to resolve are dropped by the merger and counted there as
// resolution loss.
func (table *Table) ResolveRating(sourceID int64) (int64, bool) {
	id, exist := table.byRating[sourceID]
	return id, exist
}

// ResolveBenchmark maps a benchmark row to a canonical ID, by foreign ID when
// the cross-reference knows it, falling back to fuzzy title matching.
func (table *Table) ResolveBenchmark(row RawBenchmark) (int64, bool) {
	if row.MovieID != 0 {
		if id, exist := table.byBenchmark[row.MovieID]; exist {
			return id, true
		}
	}
	if id := table.matchTitle(row.Title, row.Year); id != 0 {
		return id, true
	}
	return 0, false
}

// Movie returns the canonical movie for an ID.
func (table *Table) Movie(id int64) (CanonicalMovie, bool) {
	if id < 1 || id > int64(len(table.Movies)) {
		return CanonicalMovie{}, false
	}
	return table.Movies[id-1], true
}

// Stats returns resolution diagnostics.
func (table *Table) Stats() Stats {
	return table.stats
}

// GenreList returns the sorted union of genres over the catalog.
func (table *Table) GenreList() []string {
	genres := mapset.NewSet[string]()
	for _, movie := range table.Movies {
		if movie.Genres != nil {
			genres = genres.Union(movie.Genres)
		}
	}
	sorted := genres.ToSlice()
	sort.Strings(sorted)
	return sorted
}

// GenreVector one-hot encodes a movie's genres over GenreList's order.
func (table *Table) GenreVector(id int64, genreList []string) []uint8 {
	vector := make([]uint8, len(genreList))
	movie, exist := table.Movie(id)
	if !exist || movie.Genres == nil {
		return vector
	}
	for i, genre := range genreList {
		if movie.Genres.Contains(genre) {
			vector[i] = 1
		}
	}
	return vector
}
