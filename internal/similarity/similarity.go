// Package similarity scores a query vector against a document matrix and
// picks the single best record.
package similarity

import (
	"faqbot/internal/corpus"
	"faqbot/internal/tfidf"
)

// DefaultThreshold is the score a match must strictly exceed. It is a tuning
// knob, not a value learned from the corpus.
const DefaultThreshold = 0.10

// Match is the best scoring record for a query.
type Match struct {
	Row    int           `json:"row"`
	Record corpus.Record `json:"record"`
	Score  float64       `json:"score"`
}

// BestMatch returns the record whose row has the highest dot product with
// query. Ties resolve to the lowest row. The match is reported only when its
// score is strictly greater than threshold.
//
// matrix and records must be parallel: row i describes records[i].
func BestMatch(query tfidf.SparseVector, matrix []tfidf.SparseVector, records []corpus.Record, threshold float64) (Match, bool) {
	if len(matrix) == 0 || query.IsZero() {
		return Match{}, false
	}

	best, bestScore := -1, 0.0
	for i, row := range matrix {
		score := query.Dot(row)
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}

	if !(bestScore > threshold) || best >= len(records) {
		return Match{}, false
	}
	return Match{Row: best, Record: records[best], Score: bestScore}, true
}
