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

// Command reelrec runs the offline recommendation pipeline: resolve movie
// identities across sources, merge ratings onto a common scale, fit the
// models, evaluate them against the held-out set and the external benchmark,
// and print top-N recommendations.
package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/scylladb/go-set/i64set"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reelrec-io/reelrec/base/log"
	"github.com/reelrec-io/reelrec/config"
	"github.com/reelrec-io/reelrec/dataset"
	"github.com/reelrec-io/reelrec/merge"
	"github.com/reelrec-io/reelrec/model/rating"
	"github.com/reelrec-io/reelrec/recommend"
	"github.com/reelrec-io/reelrec/resolve"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "reelrec",
	Short: "reelrec is an offline movie recommendation engine.",
	Run: func(cmd *cobra.Command, _ []string) {
		if show, _ := cmd.PersistentFlags().GetBool("version"); show {
			fmt.Printf("reelrec version %v\n", version)
			return
		}
		debug, _ := cmd.PersistentFlags().GetBool("debug")
		log.SetLogger(cmd.PersistentFlags(), debug)
		if err := run(cmd); err != nil {
			log.Logger().Fatal("pipeline failed", zap.Error(err))
		}
	},
}

func init() {
	log.AddFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().Bool("version", false, "print the version and exit")
	rootCmd.PersistentFlags().Bool("debug", false, "use debug log level")
	rootCmd.PersistentFlags().StringP("config", "c", "", "path of the configuration file")
	rootCmd.PersistentFlags().String("ratings", "ratings.csv", "rating source: userId,movieId,rating,timestamp")
	rootCmd.PersistentFlags().String("movies", "movies.csv", "rating-source catalog: movieId,title,genres")
	rootCmd.PersistentFlags().String("links", "links.csv", "cross-reference: movieId,benchmarkId,metadataId")
	rootCmd.PersistentFlags().String("metadata", "", "metadata source: metadataId,title,year,genres (optional)")
	rootCmd.PersistentFlags().String("benchmark", "", "benchmark source: benchmarkId,title,year,rating,votes (optional)")
	rootCmd.PersistentFlags().Int64Slice("user", nil, "user IDs to print recommendations for")
	rootCmd.PersistentFlags().Bool("search", false, "run hyper-parameter grid search instead of a single fit")
	rootCmd.PersistentFlags().Bool("catalog", false, "print the resolved catalog summary with genre counts")
}

func run(cmd *cobra.Command) error {
	flags := cmd.PersistentFlags()
	conf := config.NewConfig()
	if path, _ := flags.GetString("config"); path != "" {
		var err error
		if conf, err = config.LoadConfig(path); err != nil {
			return errors.Trace(err)
		}
	}
	// load sources
	ratingsPath, _ := flags.GetString("ratings")
	moviesPath, _ := flags.GetString("movies")
	linksPath, _ := flags.GetString("links")
	metadataPath, _ := flags.GetString("metadata")
	benchmarkPath, _ := flags.GetString("benchmark")
	links, err := loadCatalog(moviesPath, linksPath)
	if err != nil {
		return errors.Trace(err)
	}
	var metadata []resolve.RawMovie
	if metadataPath != "" {
		if metadata, err = loadMetadata(metadataPath); err != nil {
			return errors.Trace(err)
		}
	}
	ratings, err := loadRatings(ratingsPath)
	if err != nil {
		return errors.Trace(err)
	}
	var benchmarks []resolve.RawBenchmark
	if benchmarkPath != "" {
		if benchmarks, err = loadBenchmark(benchmarkPath); err != nil {
			return errors.Trace(err)
		}
	}
	// resolve and merge
	table := resolve.Resolve(links, metadata, conf.ResolverOptions())
	if catalog, _ := flags.GetBool("catalog"); catalog {
		printCatalog(table)
	}
	merged, err := merge.Merge(ratings, benchmarks, table, conf.MergeConfig())
	if err != nil {
		return errors.Trace(err)
	}
	data := dataset.New(merged.Interactions, conf.Scales.Target)
	trainSet, testSet := data.Split(conf.Eval.TestFraction, conf.Eval.Seed)
	fitConfig := rating.NewFitConfig().SetJobs(conf.Eval.Jobs)
	svd := rating.NewSVD(conf.SVDParams())
	knn := rating.NewKNN(conf.KNNParams())
	if search, _ := flags.GetBool("search"); search {
		return errors.Trace(runSearch(svd, knn, trainSet, testSet, fitConfig))
	}
	// fit and evaluate
	if _, err = svd.Fit(trainSet, testSet, fitConfig); err != nil {
		return errors.Trace(err)
	}
	if _, err = knn.Fit(trainSet, testSet, fitConfig); err != nil {
		return errors.Trace(err)
	}
	models := map[string]rating.Model{"SVD": svd, "KNN": knn}
	report, err := rating.Evaluate(models, testSet, merged.Benchmark, conf.Eval.Jobs)
	if err != nil {
		return errors.Trace(err)
	}
	printReport(report)
	// recommend
	users, _ := flags.GetInt64Slice("user")
	if len(users) == 0 {
		return nil
	}
	best := bestModel(models, report)
	recommender := recommend.NewRecommender(best, data, merged.Benchmark)
	knownUsers := i64set.New()
	for _, interaction := range merged.Interactions {
		knownUsers.Add(interaction.UserID)
	}
	for _, userID := range users {
		if !knownUsers.Has(userID) {
			log.Logger().Warn("user has no ratings, recommendations are cold start",
				zap.Int64("user_id", userID))
		}
		recommendations, err := recommender.TopN(userID, data.ItemIndex.GetIDs(), conf.Eval.TopN)
		if err != nil {
			return errors.Trace(err)
		}
		printRecommendations(userID, recommendations, table)
	}
	return nil
}

func runSearch(svd, knn rating.Model, trainSet, testSet *dataset.Dataset, fitConfig *rating.FitConfig) error {
	for name, m := range map[string]rating.Model{"SVD": svd, "KNN": knn} {
		result, err := rating.GridSearchCV(m, trainSet, testSet, m.GetParamsGrid(), fitConfig)
		if err != nil {
			return errors.Trace(err)
		}
		fmt.Printf("%v: best RMSE %.4f with %v\n", name, result.BestScore.RMSE, result.BestParams)
	}
	return nil
}

func bestModel(models map[string]rating.Model, report rating.Report) rating.Model {
	bestName := ""
	for name := range models {
		if bestName == "" || report[name].RMSE < report[bestName].RMSE {
			bestName = name
		}
	}
	return models[bestName]
}

func printReport(report rating.Report) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Model", "RMSE", "MAE", "Benchmark Corr", "Cold Start"})
	for _, name := range []string{"SVD", "KNN"} {
		metrics := report[name]
		table.Append([]string{
			name,
			fmt.Sprintf("%.4f", metrics.RMSE),
			fmt.Sprintf("%.4f", metrics.MAE),
			fmt.Sprintf("%.4f", metrics.BenchmarkCorr),
			strconv.Itoa(metrics.ColdStart),
		})
	}
	table.Render()
}

// printCatalog summarizes the resolved catalog: movies per genre over the
// one-hot genre encoding, plus resolution diagnostics.
func printCatalog(catalog *resolve.Table) {
	genres := catalog.GenreList()
	counts := make([]int, len(genres))
	for _, movie := range catalog.Movies {
		for i, flag := range catalog.GenreVector(movie.ID, genres) {
			counts[i] += int(flag)
		}
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Genre", "Movies"})
	for i, genre := range genres {
		table.Append([]string{genre, strconv.Itoa(counts[i])})
	}
	table.Render()
	stats := catalog.Stats()
	fmt.Printf("%v movies resolved (%v metadata-only, %v ambiguous matches)\n",
		len(catalog.Movies), stats.MetadataOnly, stats.Ambiguities)
}

func printRecommendations(userID int64, recommendations []recommend.Recommendation, catalog *resolve.Table) {
	fmt.Printf("top recommendations for user %v:\n", userID)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Movie", "Year", "Predicted", "Cold Start"})
	for _, recommendation := range recommendations {
		title, year := strconv.FormatInt(recommendation.MovieID, 10), 0
		if movie, exist := catalog.Movie(recommendation.MovieID); exist {
			title, year = movie.Title, movie.Year
		}
		table.Append([]string{
			title,
			strconv.Itoa(year),
			fmt.Sprintf("%.2f", recommendation.Rating),
			strconv.FormatBool(recommendation.ColdStart),
		})
	}
	table.Render()
}

// openCSV opens a CSV file wrapped in a progress bar reader.
func openCSV(path, description string) (*csv.Reader, func() error, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, nil, errors.Trace(err)
	}
	bar := progressbar.DefaultBytes(stat.Size(), description)
	progressReader := progressbar.NewReader(file, bar)
	reader := csv.NewReader(&progressReader)
	reader.FieldsPerRecord = -1
	return reader, file.Close, nil
}

// isHeader reports whether a CSV row is a header: its first field is not a
// number.
func isHeader(record []string) bool {
	if len(record) == 0 {
		return true
	}
	_, err := strconv.ParseFloat(record[0], 64)
	return err != nil
}

func loadRatings(path string) ([]merge.RawRating, error) {
	reader, closer, err := openCSV(path, "load ratings")
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() { _ = closer() }()
	var ratings []merge.RawRating
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		if isHeader(record) || len(record) < 3 {
			continue
		}
		userID, _ := strconv.ParseInt(record[0], 10, 64)
		movieID, _ := strconv.ParseInt(record[1], 10, 64)
		value, _ := strconv.ParseFloat(record[2], 32)
		timestamp := int64(0)
		if len(record) > 3 {
			timestamp, _ = strconv.ParseInt(record[3], 10, 64)
		}
		ratings = append(ratings, merge.RawRating{
			UserID:    userID,
			MovieID:   movieID,
			Rating:    float32(value),
			Timestamp: timestamp,
		})
	}
	log.Logger().Info("loaded ratings", zap.String("path", path), zap.Int("count", len(ratings)))
	return ratings, nil
}

// loadCatalog joins the rating-source catalog with the cross-reference table
// on the rating-source movie ID.
func loadCatalog(moviesPath, linksPath string) ([]resolve.Link, error) {
	reader, closer, err := openCSV(moviesPath, "load movies")
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() { _ = closer() }()
	links := make(map[int64]*resolve.Link)
	var order []int64
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		if isHeader(record) || len(record) < 2 {
			continue
		}
		movieID, _ := strconv.ParseInt(record[0], 10, 64)
		title, year := resolve.SplitTitleYear(record[1])
		links[movieID] = &resolve.Link{RatingID: movieID, Title: title, Year: year}
		order = append(order, movieID)
	}
	reader, closer2, err := openCSV(linksPath, "load links")
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() { _ = closer2() }()
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		if isHeader(record) || len(record) < 3 {
			continue
		}
		movieID, _ := strconv.ParseInt(record[0], 10, 64)
		link, exist := links[movieID]
		if !exist {
			// cross-reference rows without a catalog entry still resolve by ID
			link = &resolve.Link{RatingID: movieID}
			links[movieID] = link
			order = append(order, movieID)
		}
		link.BenchmarkID, _ = strconv.ParseInt(record[1], 10, 64)
		link.MetadataID, _ = strconv.ParseInt(record[2], 10, 64)
	}
	result := make([]resolve.Link, 0, len(order))
	for _, movieID := range order {
		result = append(result, *links[movieID])
	}
	log.Logger().Info("loaded catalog", zap.String("movies", moviesPath),
		zap.String("links", linksPath), zap.Int("count", len(result)))
	return result, nil
}

func loadMetadata(path string) ([]resolve.RawMovie, error) {
	reader, closer, err := openCSV(path, "load metadata")
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() { _ = closer() }()
	var movies []resolve.RawMovie
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		if isHeader(record) || len(record) < 3 {
			continue
		}
		movieID, _ := strconv.ParseInt(record[0], 10, 64)
		year, _ := strconv.Atoi(record[2])
		var genres []string
		if len(record) > 3 && record[3] != "" {
			genres = strings.Split(record[3], "|")
		}
		movies = append(movies, resolve.RawMovie{
			MovieID: movieID,
			Title:   record[1],
			Year:    year,
			Genres:  genres,
		})
	}
	log.Logger().Info("loaded metadata", zap.String("path", path), zap.Int("count", len(movies)))
	return movies, nil
}

func loadBenchmark(path string) ([]resolve.RawBenchmark, error) {
	reader, closer, err := openCSV(path, "load benchmark")
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() { _ = closer() }()
	var benchmarks []resolve.RawBenchmark
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		if isHeader(record) || len(record) < 4 {
			continue
		}
		movieID, _ := strconv.ParseInt(record[0], 10, 64)
		year, _ := strconv.Atoi(record[2])
		value, _ := strconv.ParseFloat(record[3], 32)
		votes := 0
		if len(record) > 4 {
			votes, _ = strconv.Atoi(record[4])
		}
		benchmarks = append(benchmarks, resolve.RawBenchmark{
			MovieID: movieID,
			Title:   record[1],
			Year:    year,
			Rating:  float32(value),
			Votes:   votes,
		})
	}
	log.Logger().Info("loaded benchmark", zap.String("path", path), zap.Int("count", len(benchmarks)))
	return benchmarks, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Logger().Fatal("failed to execute command", zap.Error(err))
	}
}
