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

package resolve

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

var leadingArticles = []string{"the ", "a ", "an "}

// NormalizeTitle folds a movie title into a comparable form: lower case,
// trailing year parenthetical and punctuation removed, leading article
// dropped, whitespace collapsed. "Matrix, The (1999)" and "The Matrix"
// normalize identically.
func NormalizeTitle(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	// MovieLens embeds the release year in the title: "Toy Story (1995)"
	if n := len(s); n >= 6 && s[n-1] == ')' && s[n-6] == '(' {
		if year := s[n-5 : n-1]; !strings.ContainsFunc(year, func(r rune) bool { return r < '0' || r > '9' }) {
			s = strings.TrimSpace(s[:n-6])
		}
	}
	// "Matrix, The" -> "the matrix"
	for _, article := range leadingArticles {
		suffix := ", " + strings.TrimSpace(article)
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSpace(article) + " " + strings.TrimSuffix(s, suffix)
			break
		}
	}
	for _, article := range leadingArticles {
		if strings.HasPrefix(s, article) {
			s = s[len(article):]
			break
		}
	}
	var sb strings.Builder
	sb.Grow(len(s))
	lastSpace := true
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			sb.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(sb.String())
}

// SplitTitleYear splits a title with an embedded trailing year parenthetical,
// "Toy Story (1995)", into the bare title and the year. The year is 0 when
// the title carries none.
func SplitTitleYear(title string) (string, int) {
	s := strings.TrimSpace(title)
	if n := len(s); n >= 6 && s[n-1] == ')' && s[n-6] == '(' {
		if year, err := strconv.Atoi(s[n-5 : n-1]); err == nil {
			return strings.TrimSpace(s[:n-6]), year
		}
	}
	return s, 0
}

// TitleSimilarity returns the normalized Levenshtein similarity between two
// already-normalized titles, in [0, 1]. Empty titles never match.
func TitleSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(maxLen)
}
