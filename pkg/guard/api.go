package guard

import (
	"fmt"

	"github.com/pion/ice/v4"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// APIOption configures NewAPI.
type APIOption func(*apiConfig) error

type apiConfig struct {
	logger          *zap.Logger
	multicastDNS    bool
	includeLoopback bool
	configure       []func(*webrtc.SettingEngine)
}

// WithAPILogger routes pion's internal logs to logger.
// Default: no logging
func WithAPILogger(logger *zap.Logger) APIOption {
	return func(c *apiConfig) error {
		c.logger = logger
		return nil
	}
}

// WithMulticastDNS controls whether host candidates are advertised under
// random .local names instead of their IP address.
// Default: true
func WithMulticastDNS(enabled bool) APIOption {
	return func(c *apiConfig) error {
		c.multicastDNS = enabled
		return nil
	}
}

// WithLoopbackCandidates allows gathering loopback candidates, which is only
// useful when both peers share a host (tests, local tooling).
// Default: false
func WithLoopbackCandidates(enabled bool) APIOption {
	return func(c *apiConfig) error {
		c.includeLoopback = enabled
		return nil
	}
}

// WithSettingEngine applies fn to the SettingEngine after the defaults.
func WithSettingEngine(fn func(*webrtc.SettingEngine)) APIOption {
	return func(c *apiConfig) error {
		if fn == nil {
			return fmt.Errorf("guard: nil SettingEngine function")
		}
		c.configure = append(c.configure, fn)
		return nil
	}
}

// NewAPI builds a pion API suited as the native Factory of a Guard: default
// codecs and interceptors, host addresses hidden behind mDNS names and no
// loopback candidates.
func NewAPI(opts ...APIOption) (*webrtc.API, error) {
	cfg := apiConfig{
		logger:       zap.NewNop(),
		multicastDNS: true,
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}

	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("failed to register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{}
	se.LoggerFactory = NewLoggerFactory(cfg.logger)
	se.SetIncludeLoopbackCandidate(cfg.includeLoopback)
	if cfg.multicastDNS {
		se.SetICEMulticastDNSMode(ice.MulticastDNSModeQueryAndGather)
	}
	for _, fn := range cfg.configure {
		fn(&se)
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(i),
		webrtc.WithSettingEngine(se),
	), nil
}
