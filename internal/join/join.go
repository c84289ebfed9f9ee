// Package join matches transformed ratings to movie metadata on ASIN.
package join

import (
	"github.com/RajaShyam/JET-movie-ratings/internal/model"
)

type Result struct {
	Rows      []model.JoinedRecord
	Matched   int
	Unmatched int
}

// Join is an inner equi-join on rating asin == metadata asin. Ratings without
// a match are counted in Unmatched and dropped. Duplicate metadata keys fan
// out. Rows come out in ratings order, then metadata order.
func Join(ratings []model.TransformedRating, metadata []model.MetadataFields) Result {
	index := make(map[string][]int, len(metadata))
	for i, m := range metadata {
		if m.ASIN == "" {
			continue
		}
		index[m.ASIN] = append(index[m.ASIN], i)
	}

	res := Result{Rows: make([]model.JoinedRecord, 0, len(ratings))}
	for _, r := range ratings {
		matches := index[r.ASIN]
		if r.ASIN == "" || len(matches) == 0 {
			res.Unmatched++
			continue
		}
		res.Matched++
		for _, i := range matches {
			res.Rows = append(res.Rows, project(r, metadata[i]))
		}
	}
	return res
}

func project(r model.TransformedRating, m model.MetadataFields) model.JoinedRecord {
	return model.JoinedRecord{
		ReviewerID: r.ReviewerID,
		ASIN:       r.ASIN,
		Rating:     r.Rating,
		RatingTime: r.RatingTime,
		RatingDate: r.RatingDate,
		Year:       r.Year,
		Month:      r.Month,
		MetaASIN:   m.ASIN,
		Title:      m.Title,
	}
}
