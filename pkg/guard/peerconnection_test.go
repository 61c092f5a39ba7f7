package guard

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gatherTimeout = 10 * time.Second

// newLoopbackGuard returns a guard over a pion API that gathers loopback host
// candidates, so every test machine produces something to redact.
func newLoopbackGuard(t *testing.T, opts ...Option) *Guard {
	t.Helper()
	api, err := NewAPI(WithMulticastDNS(false), WithLoopbackCandidates(true))
	require.NoError(t, err)
	g, err := New(api, opts...)
	require.NoError(t, err)
	return g
}

func newDataChannelPeer(t *testing.T, g *Guard) *PeerConnection {
	t.Helper()
	pc, err := g.NewPeerConnection(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	_, err = pc.CreateDataChannel("data", nil)
	require.NoError(t, err)
	return pc
}

// gatherOffer runs offer/SetLocalDescription and waits for gathering to end.
func gatherOffer(t *testing.T, pc *PeerConnection) {
	t.Helper()
	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)

	gathered := webrtc.GatheringCompletePromise(pc.Native())
	require.NoError(t, pc.SetLocalDescription(offer))

	select {
	case <-gathered:
	case <-time.After(gatherTimeout):
		t.Fatal("ICE gathering did not complete")
	}
}

func assertNoLeakyLines(t *testing.T, sdp string) {
	t.Helper()
	for _, line := range strings.SplitAfter(sdp, "\n") {
		assert.False(t, IsLeakyCandidateLine(line), "leaky line: %q", line)
	}
}

func TestPeerConnection_LocalDescriptionRedacted(t *testing.T) {
	pc := newDataChannelPeer(t, newLoopbackGuard(t))
	gatherOffer(t, pc)

	native := pc.Native().LocalDescription()
	require.NotNil(t, native)
	require.Contains(t, native.SDP, "typ host", "loopback gathering should produce host candidates")

	local := pc.LocalDescription()
	require.NotNil(t, local)
	assert.Equal(t, webrtc.SDPTypeOffer, local.Type)
	assert.Equal(t, RedactSDP(native.SDP), local.SDP)
	assertNoLeakyLines(t, local.SDP)

	pending := pc.PendingLocalDescription()
	require.NotNil(t, pending)
	assertNoLeakyLines(t, pending.SDP)
	assert.Nil(t, pc.CurrentLocalDescription(), "no answer applied yet")
}

// connectPair runs a full offer/answer exchange so the offerer returns to
// stable with gathered candidates.
func connectPair(t *testing.T, g *Guard) (offerer, answerer *PeerConnection) {
	t.Helper()
	offerer = newDataChannelPeer(t, g)
	gatherOffer(t, offerer)

	answerer, err := g.NewPeerConnection(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = answerer.Close() })

	require.NoError(t, answerer.SetRemoteDescription(*offerer.LocalDescription()))
	answer, err := answerer.CreateAnswer(nil)
	require.NoError(t, err)
	require.NoError(t, answerer.SetLocalDescription(answer))
	require.NoError(t, offerer.SetRemoteDescription(answer))
	require.Equal(t, webrtc.SignalingStateStable, offerer.SignalingState())
	return offerer, answerer
}

func TestPeerConnection_RenegotiationOfferApplies(t *testing.T) {
	pc, _ := connectPair(t, newLoopbackGuard(t))

	native, err := pc.Native().CreateOffer(nil)
	require.NoError(t, err)
	require.Contains(t, native.SDP, "typ host", "a re-offer carries the gathered candidates")

	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)
	assertNoLeakyLines(t, offer.SDP)
	assert.Equal(t, offer.SDP, RedactSDP(offer.SDP))

	// pion only accepts the body it generated.
	require.Error(t, pc.Native().SetLocalDescription(offer))
	require.NoError(t, pc.SetLocalDescription(offer))
	assert.Equal(t, webrtc.SignalingStateHaveLocalOffer, pc.SignalingState())
}

func TestPeerConnection_OfferAnswerRoundTrip(t *testing.T) {
	g := newLoopbackGuard(t)
	offerer := newDataChannelPeer(t, g)
	gatherOffer(t, offerer)

	answerer, err := g.NewPeerConnection(nil)
	require.NoError(t, err)
	defer answerer.Close()

	require.NoError(t, answerer.SetRemoteDescription(*offerer.LocalDescription()))

	answer, err := answerer.CreateAnswer(nil)
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, answer.Type)
	assertNoLeakyLines(t, answer.SDP)

	gathered := webrtc.GatheringCompletePromise(answerer.Native())
	require.NoError(t, answerer.SetLocalDescription(answer))
	select {
	case <-gathered:
	case <-time.After(gatherTimeout):
		t.Fatal("ICE gathering did not complete")
	}

	current := answerer.CurrentLocalDescription()
	require.NotNil(t, current)
	assertNoLeakyLines(t, current.SDP)

	require.NoError(t, offerer.SetRemoteDescription(*answerer.LocalDescription()))
}

func TestPeerConnection_CreateAnswerErrorVerbatim(t *testing.T) {
	g := newLoopbackGuard(t)
	pc, err := g.NewPeerConnection(nil)
	require.NoError(t, err)
	defer pc.Close()

	// No remote description: both calls fail the same way.
	_, nativeErr := pc.Native().CreateAnswer(nil)
	require.Error(t, nativeErr)

	_, guardedErr := pc.CreateAnswer(nil)
	assert.Equal(t, nativeErr, guardedErr)
}

func TestPeerConnection_CreateOfferErrorVerbatim(t *testing.T) {
	g := newLoopbackGuard(t)
	pc, err := g.NewPeerConnection(nil)
	require.NoError(t, err)
	require.NoError(t, pc.Close())

	_, nativeErr := pc.Native().CreateOffer(nil)
	require.Error(t, nativeErr)

	_, guardedErr := pc.CreateOffer(nil)
	assert.Equal(t, nativeErr, guardedErr)
}

func TestPeerConnection_RedactGeneratedPassesErrorThrough(t *testing.T) {
	pc := &PeerConnection{guard: newLoopbackGuard(t), generated: map[webrtc.SDPType]generatedSDP{}}
	sentinel := errFactory
	in := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: testSDP(hostLine)}

	out, err := pc.redactGenerated(in, sentinel)

	assert.True(t, err == sentinel)
	assert.Equal(t, in.SDP, out.SDP, "nothing is touched on failure")
	assert.Empty(t, pc.generated)
}

func TestPeerConnection_OnICECandidateFiltersHost(t *testing.T) {
	pc := newDataChannelPeer(t, newLoopbackGuard(t))

	var (
		mu       sync.Mutex
		received []*webrtc.ICECandidate
		done     = make(chan struct{})
		once     sync.Once
	)
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			once.Do(func() { close(done) })
			return
		}
		mu.Lock()
		received = append(received, c)
		mu.Unlock()
	})

	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, pc.SetLocalDescription(offer))

	select {
	case <-done:
	case <-time.After(gatherTimeout):
		t.Fatal("end-of-candidates was not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, c := range received {
		assert.False(t, IsLeakyCandidate(c), "leaked %s candidate %s", c.Typ, c.Address)
	}
}

func TestPeerConnection_OnICECandidateFilterDisabled(t *testing.T) {
	pc := newDataChannelPeer(t, newLoopbackGuard(t, WithCandidateFilter(false)))

	var (
		mu    sync.Mutex
		hosts int
		done  = make(chan struct{})
		once  sync.Once
	)
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			once.Do(func() { close(done) })
			return
		}
		if c.Typ == webrtc.ICECandidateTypeHost {
			mu.Lock()
			hosts++
			mu.Unlock()
		}
	})

	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, pc.SetLocalDescription(offer))

	select {
	case <-done:
	case <-time.After(gatherTimeout):
		t.Fatal("end-of-candidates was not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, hosts, 0)
}
