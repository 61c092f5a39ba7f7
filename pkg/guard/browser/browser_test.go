package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/rtcguard/pkg/guard"
)

func TestScript_DefaultPolicy(t *testing.T) {
	js, err := Script(DefaultOptions())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(js, "(function (policy) {"))
	assert.True(t, strings.HasSuffix(js, `({"fallback":"strict","relayOnly":false,"candidateFilter":true});`+"\n"))
}

func TestScript_KeepDiscoveryRelayOnly(t *testing.T) {
	js, err := Script(Options{Policy: guard.Policy{
		Fallback:  guard.FallbackKeepDiscovery,
		RelayOnly: true,
	}})
	require.NoError(t, err)

	assert.Contains(t, js, `({"fallback":"keep-discovery","relayOnly":true,"candidateFilter":false});`)
}

func TestScript_UnknownPolicy(t *testing.T) {
	_, err := Script(Options{Policy: guard.Policy{Fallback: guard.FallbackPolicy(9)}})
	assert.ErrorIs(t, err, guard.ErrUnknownPolicy)
}

func TestShimSource_Surface(t *testing.T) {
	// The Go and page implementations must agree on what they touch.
	for _, want := range []string{
		"iceCandidatePoolSize = 0",
		"'createOffer', 'createAnswer'",
		"a=candidate:",
		"host|mDNS",
		"turns?:",
		"dropping discovery-only ICE server",
		"Object.setPrototypeOf(GuardedPeerConnection, Native)",
		"'localDescription', 'pendingLocalDescription', 'currentLocalDescription'",
		"onicecandidate",
	} {
		assert.Contains(t, shimSource, want)
	}
}
