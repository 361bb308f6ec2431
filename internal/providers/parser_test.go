package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProviderList(t *testing.T) {
	refs := ParseProviderList("mock| OpenAI:key1 |openai:key2||mock")
	require.Len(t, refs, 3)
	assert.Equal(t, ProviderRef{Raw: "OpenAI:key1", Name: "openai", KeyAlias: "key1"}, refs[1])
	assert.Equal(t, "key2", refs[2].KeyAlias)
}

func TestParseProviderListEmpty(t *testing.T) {
	assert.Equal(t, []ProviderRef{{Raw: "mock", Name: "mock"}}, ParseProviderList("  "))
}
