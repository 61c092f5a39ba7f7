package guard

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// jsonConfiguration mirrors the browser's RTCConfiguration dictionary, where
// "urls" may be a single string or a list.
type jsonConfiguration struct {
	ICEServers           []jsonICEServer `json:"iceServers"`
	ICETransportPolicy   string          `json:"iceTransportPolicy,omitempty"`
	ICECandidatePoolSize uint8           `json:"iceCandidatePoolSize"`
}

type jsonICEServer struct {
	URLs       urlList `json:"urls"`
	Username   string  `json:"username,omitempty"`
	Credential string  `json:"credential,omitempty"`
}

type urlList []string

func (u *urlList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*u = urlList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("urls must be a string or a list of strings: %w", err)
	}
	*u = many
	return nil
}

// ParseConfiguration decodes a browser-style RTCConfiguration JSON document.
func ParseConfiguration(data []byte) (*webrtc.Configuration, error) {
	var in jsonConfiguration
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	cfg := &webrtc.Configuration{ICECandidatePoolSize: in.ICECandidatePoolSize}
	if in.ICETransportPolicy != "" {
		cfg.ICETransportPolicy = webrtc.NewICETransportPolicy(in.ICETransportPolicy)
	}
	if in.ICEServers != nil {
		cfg.ICEServers = make([]webrtc.ICEServer, 0, len(in.ICEServers))
		for _, s := range in.ICEServers {
			server := webrtc.ICEServer{URLs: []string(s.URLs), Username: s.Username}
			if s.Credential != "" {
				server.Credential = s.Credential
			}
			cfg.ICEServers = append(cfg.ICEServers, server)
		}
	}
	return cfg, nil
}

// MarshalConfiguration encodes cfg in the browser's RTCConfiguration shape.
// iceCandidatePoolSize is always present, even when zero.
func MarshalConfiguration(cfg webrtc.Configuration) ([]byte, error) {
	out := jsonConfiguration{ICECandidatePoolSize: cfg.ICECandidatePoolSize}
	if cfg.ICETransportPolicy == webrtc.ICETransportPolicyRelay {
		out.ICETransportPolicy = cfg.ICETransportPolicy.String()
	}
	if cfg.ICEServers != nil {
		out.ICEServers = make([]jsonICEServer, 0, len(cfg.ICEServers))
		for _, s := range cfg.ICEServers {
			server := jsonICEServer{URLs: urlList(s.URLs), Username: s.Username}
			if cred, ok := s.Credential.(string); ok {
				server.Credential = cred
			}
			out.ICEServers = append(out.ICEServers, server)
		}
	}
	return json.MarshalIndent(out, "", "  ")
}
