package model

import (
	"fmt"
)

// MetadataFields is the typed projection of one movie metadata record.
// An empty ASIN means the key was absent.
type MetadataFields struct {
	ASIN       string     `json:"asin"`
	Categories [][]string `json:"categories,omitempty"`
	Title      *string    `json:"title,omitempty"`
	Price      *float64   `json:"price,omitempty"`
}

// RawMetadataRecord is a metadata line as read from the feed. Exactly one of
// Fields or Corrupt is populated.
type RawMetadataRecord struct {
	Fields  *MetadataFields
	Corrupt string
}

// NewValidRecord wraps fields that passed strict schema parsing.
func NewValidRecord(f MetadataFields) RawMetadataRecord {
	return RawMetadataRecord{Fields: &f}
}

// NewCorruptRecord keeps a line that failed strict parsing as raw text.
func NewCorruptRecord(text string) RawMetadataRecord {
	return RawMetadataRecord{Corrupt: text}
}

// IsCorrupt reports whether the record arrived through the corrupt-record channel.
func (r RawMetadataRecord) IsCorrupt() bool { return r.Fields == nil }

// RatingEvent is one row of the ratings log.
type RatingEvent struct {
	ReviewerID string  `json:"reviewerID"`
	ASIN       string  `json:"asin"`
	Rating     float32 `json:"ratings"`
	RatingTime int64   `json:"rating_time"`
}

// TransformedRating carries the partition fields derived from RatingTime.
type TransformedRating struct {
	RatingEvent
	RatingDate string `json:"rating_dt"`
	Year       int    `json:"year"`
	Month      int    `json:"month"`
}

// Key returns the partition key of the rating.
func (t TransformedRating) Key() PartitionKey {
	return PartitionKey{Year: t.Year, Month: t.Month}
}

// JoinedRecord is the fixed 9-column output row.
type JoinedRecord struct {
	ReviewerID string  `json:"reviewerID"`
	ASIN       string  `json:"asin"`
	Rating     float32 `json:"ratings"`
	RatingTime int64   `json:"rating_time"`
	RatingDate string  `json:"rating_dt"`
	Year       int     `json:"year"`
	Month      int     `json:"month"`
	MetaASIN   string  `json:"meta_asin"`
	Title      *string `json:"title"`
}

// Values returns the row in column order:
// reviewerID, asin, ratings, rating_time, rating_dt, year, month, meta_asin, title.
func (j JoinedRecord) Values() []any {
	var title any
	if j.Title != nil {
		title = *j.Title
	}
	return []any{j.ReviewerID, j.ASIN, j.Rating, j.RatingTime, j.RatingDate, j.Year, j.Month, j.MetaASIN, title}
}

// Key returns the partition key of the row.
func (j JoinedRecord) Key() PartitionKey {
	return PartitionKey{Year: j.Year, Month: j.Month}
}

// PartitionKey is the (year, month) pair segmenting output data and catalog entries.
type PartitionKey struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Path returns the Hive-style directory for the key, e.g. year=2013/month=9.
func (k PartitionKey) Path() string {
	return fmt.Sprintf("year=%d/month=%d", k.Year, k.Month)
}

func (k PartitionKey) String() string { return k.Path() }

// Less orders keys chronologically.
func (k PartitionKey) Less(o PartitionKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

// CatalogPartition is a catalog entry for one partition of a table.
type CatalogPartition struct {
	Table    string `json:"table"`
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	Location string `json:"location"`
	Present  bool   `json:"present"`
}

// Key returns the partition key of the entry.
func (c CatalogPartition) Key() PartitionKey {
	return PartitionKey{Year: c.Year, Month: c.Month}
}

// CatalogKey is the storage key of a table partition in key/value catalogs.
func CatalogKey(table string, key PartitionKey) string {
	return table + "/" + key.Path()
}
