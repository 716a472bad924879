package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveProfiles(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "single profile",
			raw:  "default",
			want: []string{"default"},
		},
		{
			name: "multiple profiles keep order",
			raw:  "prod,staging,dev",
			want: []string{"prod", "staging", "dev"},
		},
		{
			name: "duplicates removed on first occurrence",
			raw:  "a,b,a,c,b",
			want: []string{"a", "b", "c"},
		},
		{
			name: "whitespace trimmed",
			raw:  " a , b ,c ",
			want: []string{"a", "b", "c"},
		},
		{
			name: "empty entries skipped",
			raw:  "a,,b,",
			want: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveProfiles(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveProfiles_Empty(t *testing.T) {
	for _, raw := range []string{"", " ", ",", " , ,"} {
		_, err := ResolveProfiles(raw)
		assert.ErrorIs(t, err, ErrNoProfiles, "input %q", raw)
	}
}
