package guard

import (
	"fmt"
	"strings"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
)

// FallbackPolicy decides what happens when no relay server survives filtering.
type FallbackPolicy int

const (
	// FallbackStrict always drops discovery-only servers, even if that leaves
	// the connection without any ICE server.
	FallbackStrict FallbackPolicy = iota

	// FallbackKeepDiscovery keeps the caller's discovery servers when none of
	// them offers a relay scheme. Connectivity wins over address hiding.
	FallbackKeepDiscovery
)

func (p FallbackPolicy) String() string {
	switch p {
	case FallbackStrict:
		return "strict"
	case FallbackKeepDiscovery:
		return "keep-discovery"
	default:
		return fmt.Sprintf("FallbackPolicy(%d)", int(p))
	}
}

// ParseFallbackPolicy parses the textual form produced by String.
// An empty string yields FallbackStrict.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return FallbackStrict, nil
	case "keep-discovery", "keep_discovery":
		return FallbackKeepDiscovery, nil
	default:
		return FallbackStrict, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Policy controls how configurations are rewritten.
type Policy struct {
	Fallback  FallbackPolicy
	RelayOnly bool // also force ICETransportPolicy to relay
}

// DefaultPolicy returns the strict policy: drop every discovery-only server.
func DefaultPolicy() Policy {
	return Policy{Fallback: FallbackStrict}
}

// SanitizeReport describes what SanitizeConfiguration changed.
type SanitizeReport struct {
	// OriginalPoolSize is the candidate pool size the caller asked for.
	OriginalPoolSize uint8

	// Dropped lists the discovery-only servers that were removed.
	Dropped []webrtc.ICEServer

	// Kept is the number of servers handed to the native factory.
	Kept int

	// Empty is set when a server list was supplied but nothing survived.
	Empty bool

	// Restored is set when FallbackKeepDiscovery put the discovery servers back.
	Restored bool
}

// SanitizeConfiguration returns a deep copy of cfg rewritten so it cannot
// pre-gather candidates or learn the public address through a discovery
// server. A nil cfg is treated as an empty configuration. cfg is never
// modified.
//
// The returned configuration always has ICECandidatePoolSize == 0. When
// cfg.ICEServers is non-nil, only servers with at least one relay URI remain.
func SanitizeConfiguration(cfg *webrtc.Configuration, policy Policy) (webrtc.Configuration, SanitizeReport) {
	out := cloneConfiguration(cfg)

	var report SanitizeReport
	report.OriginalPoolSize = out.ICECandidatePoolSize
	out.ICECandidatePoolSize = 0

	if policy.RelayOnly {
		out.ICETransportPolicy = webrtc.ICETransportPolicyRelay
	}

	if out.ICEServers == nil {
		return out, report
	}

	kept := make([]webrtc.ICEServer, 0, len(out.ICEServers))
	for _, server := range out.ICEServers {
		if IsRelayServer(server) {
			kept = append(kept, server)
			continue
		}
		report.Dropped = append(report.Dropped, server)
	}

	if len(kept) == 0 && len(report.Dropped) > 0 && policy.Fallback == FallbackKeepDiscovery {
		report.Restored = true
		report.Dropped = nil
		report.Kept = len(out.ICEServers)
		return out, report
	}

	out.ICEServers = kept
	report.Kept = len(kept)
	report.Empty = len(kept) == 0
	return out, report
}

// IsRelayServer reports whether any of the server's URLs uses a relay scheme.
func IsRelayServer(server webrtc.ICEServer) bool {
	for _, u := range server.URLs {
		if IsRelayURL(u) {
			return true
		}
	}
	return false
}

// IsRelayURL reports whether raw is a turn: or turns: URI.
func IsRelayURL(raw string) bool {
	if u, err := stun.ParseURI(raw); err == nil {
		return u.Scheme == stun.SchemeTypeTURN || u.Scheme == stun.SchemeTypeTURNS
	}
	// ParseURI rejects some URIs browsers accept; classify those by prefix.
	lower := strings.ToLower(strings.TrimSpace(raw))
	return strings.HasPrefix(lower, "turn:") || strings.HasPrefix(lower, "turns:")
}

// cloneConfiguration copies cfg so that no slice is shared with the caller.
func cloneConfiguration(cfg *webrtc.Configuration) webrtc.Configuration {
	if cfg == nil {
		return webrtc.Configuration{}
	}
	out := *cfg
	if cfg.ICEServers != nil {
		out.ICEServers = make([]webrtc.ICEServer, len(cfg.ICEServers))
		for i, server := range cfg.ICEServers {
			server.URLs = append([]string(nil), server.URLs...)
			out.ICEServers[i] = server
		}
	}
	if cfg.Certificates != nil {
		out.Certificates = append([]webrtc.Certificate(nil), cfg.Certificates...)
	}
	return out
}
