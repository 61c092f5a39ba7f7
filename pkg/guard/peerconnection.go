package guard

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// PeerConnection is a native connection whose session descriptions never
// carry host or mDNS candidates. Every method not overridden here is the
// embedded native one.
type PeerConnection struct {
	*webrtc.PeerConnection

	guard *Guard

	// pion rejects a local description that differs from the last generated
	// offer or answer, so the native body is remembered per type and put
	// back when the caller applies the redacted one.
	mu        sync.Mutex
	generated map[webrtc.SDPType]generatedSDP
}

type generatedSDP struct {
	native   string
	redacted string
}

func newPeerConnection(native *webrtc.PeerConnection, g *Guard) *PeerConnection {
	return &PeerConnection{
		PeerConnection: native,
		guard:          g,
		generated:      make(map[webrtc.SDPType]generatedSDP),
	}
}

// Native returns the wrapped connection, for APIs such as
// webrtc.GatheringCompletePromise that need the concrete type.
func (pc *PeerConnection) Native() *webrtc.PeerConnection {
	return pc.PeerConnection
}

// CreateOffer calls the native CreateOffer and redacts its result.
func (pc *PeerConnection) CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error) {
	return pc.redactGenerated(pc.PeerConnection.CreateOffer(options))
}

// CreateAnswer calls the native CreateAnswer and redacts its result.
func (pc *PeerConnection) CreateAnswer(options *webrtc.AnswerOptions) (webrtc.SessionDescription, error) {
	return pc.redactGenerated(pc.PeerConnection.CreateAnswer(options))
}

// redactGenerated passes a native error through untouched.
func (pc *PeerConnection) redactGenerated(desc webrtc.SessionDescription, err error) (webrtc.SessionDescription, error) {
	if err != nil {
		return desc, err
	}
	out := RedactDescription(desc)
	if out.SDP != desc.SDP {
		pc.mu.Lock()
		pc.generated[desc.Type] = generatedSDP{native: desc.SDP, redacted: out.SDP}
		pc.mu.Unlock()
		pc.guard.logger.Debug("removed local candidates from session description",
			zap.Stringer("type", desc.Type),
			zap.Int("bytes", len(desc.SDP)-len(out.SDP)))
	}
	return out, nil
}

// SetLocalDescription applies desc. A redacted offer or answer produced by
// this connection is swapped for the native body it was derived from.
func (pc *PeerConnection) SetLocalDescription(desc webrtc.SessionDescription) error {
	pc.mu.Lock()
	if gen, ok := pc.generated[desc.Type]; ok && gen.redacted == desc.SDP {
		desc = webrtc.SessionDescription{Type: desc.Type, SDP: gen.native}
	}
	pc.mu.Unlock()
	return pc.PeerConnection.SetLocalDescription(desc)
}

// LocalDescription returns the redacted pending or current local description.
func (pc *PeerConnection) LocalDescription() *webrtc.SessionDescription {
	return redactPtr(pc.PeerConnection.LocalDescription())
}

// PendingLocalDescription returns the redacted pending local description.
func (pc *PeerConnection) PendingLocalDescription() *webrtc.SessionDescription {
	return redactPtr(pc.PeerConnection.PendingLocalDescription())
}

// CurrentLocalDescription returns the redacted current local description.
func (pc *PeerConnection) CurrentLocalDescription() *webrtc.SessionDescription {
	return redactPtr(pc.PeerConnection.CurrentLocalDescription())
}

func redactPtr(desc *webrtc.SessionDescription) *webrtc.SessionDescription {
	if desc == nil {
		return nil
	}
	out := RedactDescription(*desc)
	return &out
}

// OnICECandidate sets the trickle handler. Host and mDNS candidates are not
// delivered unless the guard was built WithCandidateFilter(false). The nil
// candidate that ends gathering is always delivered.
func (pc *PeerConnection) OnICECandidate(f func(*webrtc.ICECandidate)) {
	if f == nil || !pc.guard.filterCandidates {
		pc.PeerConnection.OnICECandidate(f)
		return
	}
	logger := pc.guard.logger
	pc.PeerConnection.OnICECandidate(func(c *webrtc.ICECandidate) {
		if IsLeakyCandidate(c) {
			logger.Debug("withholding local ICE candidate", zap.Stringer("type", c.Typ))
			return
		}
		f(c)
	})
}
