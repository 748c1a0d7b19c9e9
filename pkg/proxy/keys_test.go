package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := GenerateKey()
		require.NoError(t, err)
		assert.Regexp(t, `^wts_[A-Za-z0-9]{40}$`, key)
		assert.False(t, seen[key], "keys must not repeat")
		seen[key] = true
	}
}

func TestValidKeyFormat(t *testing.T) {
	valid, err := GenerateKey()
	require.NoError(t, err)
	assert.True(t, ValidKeyFormat(valid))

	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"wrong prefix", "sk-AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"},
		{"too short", "wts_AAAAAAAA"},
		{"too long", "wts_" + string(make([]byte, 41))},
		{"bad characters", "wts_AAAAAAAAAAAAAAAAAAA!AAAAAAAAAAAAAAAAAAAA"},
		{"bare prefix", "wts_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, ValidKeyFormat(tt.key))
		})
	}
}
