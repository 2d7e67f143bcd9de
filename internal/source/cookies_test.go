package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCookieBundleAcceptsStringEntries(t *testing.T) {
	raw := `["auth_token=abc123; Domain=.twitter.com; Path=/", "ct0=def456; Domain=.twitter.com; Path=/"]`
	bundle, err := ParseCookieBundle(raw)
	require.NoError(t, err)
	require.Len(t, bundle.Entries, 2)
	assert.Equal(t, "auth_token", bundle.Entries[0].Name)
	assert.Equal(t, "abc123", bundle.Entries[0].Value)
	assert.Equal(t, ".twitter.com", bundle.Entries[0].Domain)
}

func TestParseCookieBundleAcceptsObjectEntries(t *testing.T) {
	raw := `[{"name":"auth_token","value":"abc123","domain":".twitter.com"},{"key":"ct0","value":"def456","domain":".twitter.com"}]`
	bundle, err := ParseCookieBundle(raw)
	require.NoError(t, err)
	require.Len(t, bundle.Entries, 2)
	assert.Equal(t, "ct0", bundle.Entries[1].Name)
}

func TestParseCookieBundleRewritesXDotComDomain(t *testing.T) {
	raw := `[{"name":"auth_token","value":"a","domain":"x.com"},{"name":"ct0","value":"b","domain":"x.com"}]`
	bundle, err := ParseCookieBundle(raw)
	require.NoError(t, err)
	assert.Equal(t, ".twitter.com", bundle.Entries[0].Domain)
	assert.Equal(t, 2, bundle.DomainRewrites)
}

func TestParseCookieBundleRequiresAuthTokenAndCT0(t *testing.T) {
	_, err := ParseCookieBundle(`[{"name":"auth_token","value":"a"}]`)
	assert.Error(t, err)

	_, err = ParseCookieBundle(`[{"name":"ct0","value":"b"}]`)
	assert.Error(t, err)
}

func TestParseCookieBundleRejectsInvalidJSON(t *testing.T) {
	_, err := ParseCookieBundle(`not json`)
	assert.Error(t, err)
}

func TestExtractAuthPairsDeduplicatesAndPreservesOrder(t *testing.T) {
	bundle := CookieBundle{Entries: []CookieEntry{
		{Name: "auth_token", Value: "a1", Domain: ".twitter.com"},
		{Name: "ct0", Value: "c1", Domain: ".twitter.com"},
		{Name: "auth_token", Value: "a2", Domain: ".x.com"},
		{Name: "ct0", Value: "c2", Domain: ".x.com"},
	}}
	pairs := extractAuthPairs(bundle)
	require.Len(t, pairs, 2)
	assert.Equal(t, authPair{AuthToken: "a1", CT0: "c1"}, pairs[0])
	assert.Equal(t, authPair{AuthToken: "a2", CT0: "c2"}, pairs[1])
}

func TestOtherCookieHeaderExcludesAuthCookies(t *testing.T) {
	bundle := CookieBundle{Entries: []CookieEntry{
		{Name: "auth_token", Value: "a"},
		{Name: "ct0", Value: "b"},
		{Name: "personalization_id", Value: "xyz"},
	}}
	header := otherCookieHeader(bundle)
	assert.Equal(t, "personalization_id=xyz", header)
}

func TestGuestTokenFoundByConventionalName(t *testing.T) {
	bundle := CookieBundle{Entries: []CookieEntry{{Name: "gt", Value: "guest123"}}}
	assert.Equal(t, "guest123", guestToken(bundle))
	assert.Empty(t, guestToken(CookieBundle{}))
}
