package model

import (
	"fmt"
)

// MetadataFromLiteral extracts the movie metadata fields from a parsed key/value
// literal. Unknown keys are ignored and missing keys stay absent. A value whose
// type does not fit the metadata schema is an error.
func MetadataFromLiteral(obj map[string]any) (MetadataFields, error) {
	var f MetadataFields

	if v, ok := obj["asin"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return MetadataFields{}, fmt.Errorf("asin: expected string, got %T", v)
		}
		f.ASIN = s
	}

	if v, ok := obj["categories"]; ok && v != nil {
		cats, err := categoriesFrom(v)
		if err != nil {
			return MetadataFields{}, err
		}
		f.Categories = cats
	}

	if v, ok := obj["title"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return MetadataFields{}, fmt.Errorf("title: expected string, got %T", v)
		}
		f.Title = &s
	}

	if v, ok := obj["price"]; ok && v != nil {
		var p float64
		switch n := v.(type) {
		case float64:
			p = n
		case int64:
			p = float64(n)
		default:
			return MetadataFields{}, fmt.Errorf("price: expected number, got %T", v)
		}
		f.Price = &p
	}

	return f, nil
}

func categoriesFrom(v any) ([][]string, error) {
	outer, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("categories: expected list, got %T", v)
	}
	cats := make([][]string, 0, len(outer))
	for i, item := range outer {
		if item == nil {
			cats = append(cats, nil)
			continue
		}
		inner, ok := item.([]any)
		if !ok {
			return nil, fmt.Errorf("categories[%d]: expected list, got %T", i, item)
		}
		path := make([]string, 0, len(inner))
		for j, c := range inner {
			switch s := c.(type) {
			case string:
				path = append(path, s)
			case nil:
				path = append(path, "")
			default:
				return nil, fmt.Errorf("categories[%d][%d]: expected string, got %T", i, j, c)
			}
		}
		cats = append(cats, path)
	}
	return cats, nil
}
