// Package transform derives the calendar partition fields of rating events.
package transform

import (
	"time"

	"github.com/RajaShyam/JET-movie-ratings/internal/model"
)

const DateLayout = "2006-01-02"

// Transform converts the epoch-seconds rating time to a UTC date and the
// year/month partition key. It never fails.
func Transform(ev model.RatingEvent) model.TransformedRating {
	t := time.Unix(ev.RatingTime, 0).UTC()
	return model.TransformedRating{
		RatingEvent: ev,
		RatingDate:  t.Format(DateLayout),
		Year:        t.Year(),
		Month:       int(t.Month()),
	}
}

func TransformAll(events []model.RatingEvent) []model.TransformedRating {
	out := make([]model.TransformedRating, len(events))
	for i, ev := range events {
		out[i] = Transform(ev)
	}
	return out
}
