package query

import (
	"fmt"
	"strings"
)

// Tag is a single key=value pair of a TagFilter.
type Tag struct {
	Key   string
	Value string
}

// TagFilter restricts which state machines are considered. All pairs must
// match (AND semantics). An empty filter matches everything.
type TagFilter []Tag

// ParseTags parses a comma-separated list of key=value pairs. An empty
// input yields an empty filter.
func ParseTags(raw string) (TagFilter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var filter TagFilter

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid tag %q: must be key=value", pair)
		}

		filter = append(filter, Tag{Key: key, Value: value})
	}

	return filter, nil
}

// Matches reports whether a resource's tags satisfy every pair in the
// filter. A key absent from the resource never matches.
func (f TagFilter) Matches(tags map[string]string) bool {
	for _, t := range f {
		v, ok := tags[t.Key]
		if !ok || v != t.Value {
			return false
		}
	}

	return true
}

// Empty reports whether the filter has no pairs.
func (f TagFilter) Empty() bool {
	return len(f) == 0
}

// String renders the filter back to key=value,key=value form.
func (f TagFilter) String() string {
	pairs := make([]string, 0, len(f))
	for _, t := range f {
		pairs = append(pairs, t.Key+"="+t.Value)
	}

	return strings.Join(pairs, ",")
}
