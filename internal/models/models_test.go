package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringArrayScan(t *testing.T) {
	cases := []struct {
		name  string
		input interface{}
		want  StringArray
	}{
		{"nil", nil, StringArray{}},
		{"json list", []byte(`["a","b"]`), StringArray{"a", "b"}},
		{"json string", `"solo"`, StringArray{"solo"}},
		{"plain text", "raw", StringArray{"raw"}},
		{"null", "null", StringArray{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got StringArray
			require.NoError(t, got.Scan(tc.input))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStringArrayCompact(t *testing.T) {
	in := StringArray{" go ", "", "ai", "go", "ai "}
	assert.Equal(t, StringArray{"go", "ai", "go", "ai"}, in.Compact(false))
	assert.Equal(t, StringArray{"go", "ai"}, in.Compact(true))
}

func TestTurnMetadataRoundTripThroughDriver(t *testing.T) {
	meta := TurnMetadata{Direction: "motivation", DirectionStatus: "incomplete"}
	v, err := meta.Value()
	require.NoError(t, err)

	var back TurnMetadata
	require.NoError(t, back.Scan(v))
	assert.Equal(t, meta, back)

	require.NoError(t, back.Scan(nil))
	assert.Equal(t, TurnMetadata{}, back)
}

func TestIdeaStatusValid(t *testing.T) {
	assert.True(t, IdeaStatusInbox.Valid())
	assert.True(t, IdeaStatusCompleted.Valid())
	assert.False(t, IdeaStatus("draft").Valid())
	assert.True(t, RoleSystem.Valid())
	assert.False(t, TurnRole("bot").Valid())
}
