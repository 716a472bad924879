package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTags(t *testing.T) {
	filter, err := ParseTags("env=prod,team=data")
	require.NoError(t, err)
	require.Len(t, filter, 2)
	assert.Equal(t, Tag{Key: "env", Value: "prod"}, filter[0])
	assert.Equal(t, Tag{Key: "team", Value: "data"}, filter[1])
}

func TestParseTags_Empty(t *testing.T) {
	filter, err := ParseTags("")
	require.NoError(t, err)
	assert.True(t, filter.Empty())
}

func TestParseTags_Invalid(t *testing.T) {
	for _, raw := range []string{"noequals", "=value", "a=1,bad"} {
		_, err := ParseTags(raw)
		assert.Error(t, err, "input %q", raw)
	}
}

func TestParseTags_EmptyValueAllowed(t *testing.T) {
	filter, err := ParseTags("env=")
	require.NoError(t, err)
	require.Len(t, filter, 1)
	assert.Equal(t, "", filter[0].Value)
}

func TestTagFilter_Matches(t *testing.T) {
	filter, err := ParseTags("foo=bar")
	require.NoError(t, err)

	// Resource with the tag (and extras) matches.
	assert.True(t, filter.Matches(map[string]string{"foo": "bar", "other": "val"}))

	// Missing key never matches.
	assert.False(t, filter.Matches(map[string]string{"other": "val"}))

	// Wrong value does not match.
	assert.False(t, filter.Matches(map[string]string{"foo": "baz"}))
}

func TestTagFilter_MatchesAND(t *testing.T) {
	filter, err := ParseTags("env=prod,team=data")
	require.NoError(t, err)

	assert.True(t, filter.Matches(map[string]string{"env": "prod", "team": "data"}))
	assert.False(t, filter.Matches(map[string]string{"env": "prod"}))
}

func TestTagFilter_EmptyMatchesEverything(t *testing.T) {
	var filter TagFilter

	assert.True(t, filter.Matches(nil))
	assert.True(t, filter.Matches(map[string]string{"any": "thing"}))
}

func TestTagFilter_String(t *testing.T) {
	filter, err := ParseTags("a=1,b=2")
	require.NoError(t, err)
	assert.Equal(t, "a=1,b=2", filter.String())
}
