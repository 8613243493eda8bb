package baseball

import (
	"database/sql/driver"
	"encoding/json"
	"sort"
	"strings"
)

// TagDelimiter joins tags in the flat text columns.
const TagDelimiter = ","

// TagSet is an ordered, de-duplicated set of tags. Tags are kept sorted so
// two sets built from the same inputs in any order serialize identically.
type TagSet[T ~string] struct {
	items []T
}

// NewTagSet builds a set from the given tags, skipping empty values.
func NewTagSet[T ~string](tags ...T) TagSet[T] {
	var s TagSet[T]
	for _, t := range tags {
		s.Add(t)
	}
	return s
}

// Add inserts a tag, keeping the set sorted.
func (s *TagSet[T]) Add(tag T) {
	if tag == "" {
		return
	}
	idx := sort.Search(len(s.items), func(i int) bool { return s.items[i] >= tag })
	if idx < len(s.items) && s.items[idx] == tag {
		return
	}
	s.items = append(s.items, "")
	copy(s.items[idx+1:], s.items[idx:])
	s.items[idx] = tag
}

// Contains reports whether the tag is in the set.
func (s TagSet[T]) Contains(tag T) bool {
	idx := sort.Search(len(s.items), func(i int) bool { return s.items[i] >= tag })
	return idx < len(s.items) && s.items[idx] == tag
}

// Len returns the number of tags.
func (s TagSet[T]) Len() int {
	return len(s.items)
}

// Items returns a copy of the tags in order.
func (s TagSet[T]) Items() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// String joins the tags with TagDelimiter.
func (s TagSet[T]) String() string {
	parts := make([]string, len(s.items))
	for i, t := range s.items {
		parts[i] = string(t)
	}
	return strings.Join(parts, TagDelimiter)
}

// Value implements driver.Valuer. An empty set is stored as NULL.
func (s TagSet[T]) Value() (driver.Value, error) {
	if len(s.items) == 0 {
		return nil, nil
	}
	return s.String(), nil
}

// MarshalJSON encodes the set as a JSON array.
func (s TagSet[T]) MarshalJSON() ([]byte, error) {
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

// snakeCase lowercases free text and joins words with underscores,
// so "Stolen Base 2B" and "stolen_base_2b" compare equal.
func snakeCase(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '/' || r == '\'' || r == '.'
	})
	return strings.Join(fields, "_")
}
