package guard

import (
	"errors"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

var (
	// ErrNoFactory is returned by New when no native factory is supplied.
	ErrNoFactory = errors.New("guard: no peer connection factory")

	// ErrUnknownPolicy is returned when a fallback policy cannot be parsed.
	ErrUnknownPolicy = errors.New("guard: unknown fallback policy")
)

// Factory creates native peer connections. *webrtc.API satisfies it.
type Factory interface {
	NewPeerConnection(configuration webrtc.Configuration) (*webrtc.PeerConnection, error)
}

// FactoryFunc adapts an ordinary function to the Factory interface.
type FactoryFunc func(configuration webrtc.Configuration) (*webrtc.PeerConnection, error)

// NewPeerConnection calls f(configuration).
func (f FactoryFunc) NewPeerConnection(configuration webrtc.Configuration) (*webrtc.PeerConnection, error) {
	return f(configuration)
}

// Option configures a Guard.
type Option func(*Guard) error

// WithLogger sets the logger used for diagnostics.
// Default: zap.NewNop()
func WithLogger(logger *zap.Logger) Option {
	return func(g *Guard) error {
		if logger == nil {
			return errors.New("guard: logger must not be nil")
		}
		g.logger = logger
		return nil
	}
}

// WithFallbackPolicy sets what happens when filtering leaves no relay server.
// Default: FallbackStrict
func WithFallbackPolicy(p FallbackPolicy) Option {
	return func(g *Guard) error {
		if p != FallbackStrict && p != FallbackKeepDiscovery {
			return ErrUnknownPolicy
		}
		g.policy.Fallback = p
		return nil
	}
}

// WithRelayOnly forces ICETransportPolicy to relay on every configuration.
// Default: false
func WithRelayOnly(enabled bool) Option {
	return func(g *Guard) error {
		g.policy.RelayOnly = enabled
		return nil
	}
}

// WithCandidateFilter controls whether host and mDNS candidates are withheld
// from OnICECandidate handlers.
// Default: true
func WithCandidateFilter(enabled bool) Option {
	return func(g *Guard) error {
		g.filterCandidates = enabled
		return nil
	}
}

// Guard wraps a native Factory. Every connection it creates is built from a
// sanitized configuration and hands back redacted session descriptions.
//
// A Guard is immutable after New and safe for concurrent use.
type Guard struct {
	factory          Factory
	logger           *zap.Logger
	policy           Policy
	filterCandidates bool
}

// New creates a Guard around factory.
//
// Example:
//
//	api, err := guard.NewAPI()
//	if err != nil {
//	    return err
//	}
//	g, err := guard.New(api, guard.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	pc, err := g.NewPeerConnection(&webrtc.Configuration{ICEServers: servers})
func New(factory Factory, opts ...Option) (*Guard, error) {
	if factory == nil {
		return nil, ErrNoFactory
	}
	g := &Guard{
		factory:          factory,
		logger:           zap.NewNop(),
		policy:           DefaultPolicy(),
		filterCandidates: true,
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	g.logger.Info("peer connection guard installed",
		zap.Stringer("fallback", g.policy.Fallback),
		zap.Bool("relayOnly", g.policy.RelayOnly),
		zap.Bool("candidateFilter", g.filterCandidates))
	return g, nil
}

// Policy returns the configuration policy in effect.
func (g *Guard) Policy() Policy {
	return g.policy
}

// NewPeerConnection sanitizes cfg, creates a native connection from the
// result and wraps it. cfg may be nil and is never modified. Errors from the
// native factory are returned unchanged.
func (g *Guard) NewPeerConnection(cfg *webrtc.Configuration) (*PeerConnection, error) {
	sanitized, _ := g.Sanitize(cfg)

	native, err := g.factory.NewPeerConnection(sanitized)
	if err != nil {
		return nil, err
	}
	return newPeerConnection(native, g), nil
}

// Sanitize applies the guard's policy to cfg and logs what changed, without
// creating a connection.
func (g *Guard) Sanitize(cfg *webrtc.Configuration) (webrtc.Configuration, SanitizeReport) {
	sanitized, report := SanitizeConfiguration(cfg, g.policy)
	g.logReport(report)
	return sanitized, report
}

func (g *Guard) logReport(report SanitizeReport) {
	for _, server := range report.Dropped {
		g.logger.Warn("dropping discovery-only ICE server", zap.Strings("urls", server.URLs))
	}
	if report.Restored {
		g.logger.Warn("no relay ICE server configured, keeping discovery servers",
			zap.Int("servers", report.Kept))
	}
	if report.Empty {
		g.logger.Warn("ICE server list is empty after filtering, connection may fail")
	}
	g.logger.Info("peer connection configuration rewritten",
		zap.Uint8("requestedPoolSize", report.OriginalPoolSize),
		zap.Int("iceServers", report.Kept))
}
