// Package schema holds the fixed record schemas of the ingestion inputs and output.
package schema

import (
	"github.com/zeebo/errs"
)

// DefinitionError is returned when an unknown schema is requested.
var DefinitionError = errs.Class("schema definition")

// Schema names.
const (
	Ratings       = "ratings"
	MovieMetadata = "movie metadata"
)

// Type is a column type.
type Type string

// Column types used by the schemas.
const (
	String          Type = "string"
	Float           Type = "float"
	Double          Type = "double"
	Long            Type = "long"
	StringListLists Type = "array<array<string>>"
)

// Field is one column of a schema.
type Field struct {
	Name     string
	Type     Type
	Nullable bool
}

// Schema is a static, versionless record definition.
type Schema struct {
	Name   string
	Fields []Field
}

// Names returns the field names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// JoinedColumns is the column order of joined output rows.
var JoinedColumns = []string{
	"reviewerID", "asin", "ratings", "rating_time", "rating_dt",
	"year", "month", "meta_asin", "title",
}

// PartitionColumns are the columns that segment output data.
var PartitionColumns = []string{"year", "month"}

// Lookup returns the canonical schema for name.
func Lookup(name string) (Schema, error) {
	switch name {
	case Ratings:
		return Schema{Name: Ratings, Fields: []Field{
			{Name: "reviewerID", Type: String, Nullable: true},
			{Name: "asin", Type: String, Nullable: true},
			{Name: "ratings", Type: Float, Nullable: true},
			{Name: "rating_time", Type: Long, Nullable: true},
		}}, nil
	case MovieMetadata:
		return Schema{Name: MovieMetadata, Fields: []Field{
			{Name: "asin", Type: String, Nullable: true},
			{Name: "categories", Type: StringListLists, Nullable: true},
			{Name: "title", Type: String, Nullable: true},
			{Name: "price", Type: Double, Nullable: true},
		}}, nil
	default:
		return Schema{}, DefinitionError.New("unknown schema %q", name)
	}
}

// MustLookup is Lookup for the built-in names; it panics on unknown names.
func MustLookup(name string) Schema {
	s, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return s
}
