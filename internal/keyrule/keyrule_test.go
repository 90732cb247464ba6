package keyrule_test

import (
	"testing"

	"github.com/cirruslabs/imagecache/internal/keyrule"
	"github.com/stretchr/testify/require"
)

func TestStableKeyDefault(t *testing.T) {
	var rules keyrule.Rules

	require.Equal(t, "https://storage.googleapis.com/bucket/a.png",
		rules.StableKey("https://storage.googleapis.com/bucket/a.png?X-Goog-Signature=abc&X-Goog-Expires=900"))
	require.Equal(t, "https://storage.googleapis.com/bucket/a.png",
		rules.StableKey("https://storage.googleapis.com/bucket/a.png?"))
	require.Equal(t, "https://example.com/a.png",
		rules.StableKey("https://example.com/a.png#fragment"))

	// Same object, different signatures, same key
	require.Equal(t, rules.StableKey("https://example.com/a.png?sig=1"),
		rules.StableKey("https://example.com/a.png?sig=2"))
}

func TestStableKeyWithRule(t *testing.T) {
	rule, err := keyrule.New(`^https://cdn\.example\.com/`, []string{"sig", "expires"})
	require.NoError(t, err)

	rules := keyrule.Rules{rule}

	require.Equal(t, "https://cdn.example.com/resize?w=200",
		rules.StableKey("https://cdn.example.com/resize?w=200&sig=abc&expires=123"))

	// URLs not matched by any rule fall back to stripping everything
	require.Equal(t, "https://other.example.com/resize",
		rules.StableKey("https://other.example.com/resize?w=200&sig=abc"))
}

func TestGet(t *testing.T) {
	first, err := keyrule.New(`^https://a\.example\.com/`, []string{"a"})
	require.NoError(t, err)

	second, err := keyrule.New(`example\.com`, []string{"b"})
	require.NoError(t, err)

	rules := keyrule.Rules{first, second}

	require.Equal(t, []string{"a"}, rules.Get("https://a.example.com/x").IgnoredParameters())
	require.Equal(t, []string{"b"}, rules.Get("https://b.example.com/x").IgnoredParameters())
	require.Nil(t, rules.Get("https://example.org/x"))
}

func TestInvalidPattern(t *testing.T) {
	_, err := keyrule.New(`(`, nil)
	require.Error(t, err)
}
