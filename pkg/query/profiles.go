// Package query holds the resolved scope of a stepview run: which AWS
// profiles to query, the lookback window, and the tag filter applied to
// state machines.
package query

import (
	"errors"
	"strings"
)

// ErrNoProfiles is returned when profile resolution yields an empty set.
var ErrNoProfiles = errors.New("no AWS profiles resolved")

// ResolveProfiles parses a comma-separated profile list into a set of
// distinct profile names. Order is preserved on first occurrence and
// surrounding whitespace is trimmed. Credential validity is not checked
// here; bad credentials surface later, per profile, during fetching.
func ResolveProfiles(raw string) ([]string, error) {
	seen := make(map[string]struct{}, 4)

	var profiles []string

	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}

		if _, ok := seen[name]; ok {
			continue
		}

		seen[name] = struct{}{}
		profiles = append(profiles, name)
	}

	if len(profiles) == 0 {
		return nil, ErrNoProfiles
	}

	return profiles, nil
}
