package guard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pion/ice/v4"
	"github.com/pion/sdp/v3"
)

// ErrNotCandidate is returned by AuditCandidate for input that is not an ICE
// candidate attribute.
var ErrNotCandidate = errors.New("guard: not an ICE candidate")

const attrKeyCandidate = "candidate"

// CandidateTypeUnknown labels candidates whose type could not be determined.
const CandidateTypeUnknown = "unknown"

// Candidate is one ICE candidate found in a session description.
type Candidate struct {
	Media   string `json:"media,omitempty"` // empty for session-level attributes
	Type    string `json:"type"`
	Address string `json:"address,omitempty"`
	Port    int    `json:"port,omitempty"`
	Raw     string `json:"raw"`
}

// Leaky reports whether the candidate reveals a local address.
func (c Candidate) Leaky() bool {
	return c.Type == ice.CandidateTypeHost.String() ||
		strings.HasSuffix(c.Address, ".local") ||
		IsLeakyCandidateLine(candidatePrefix+c.Raw)
}

// Report summarises the candidates carried by a session description.
type Report struct {
	Candidates []Candidate    `json:"candidates"`
	ByType     map[string]int `json:"byType"`
	Leaks      []Candidate    `json:"leaks,omitempty"`
}

// Leaking reports whether any candidate reveals a local address.
func (r *Report) Leaking() bool {
	return len(r.Leaks) > 0
}

// Add records c in the report.
func (r *Report) Add(c Candidate) {
	if r.ByType == nil {
		r.ByType = make(map[string]int)
	}
	r.Candidates = append(r.Candidates, c)
	r.ByType[c.Type]++
	if c.Leaky() {
		r.Leaks = append(r.Leaks, c)
	}
}

// Audit parses body and classifies every candidate attribute it carries,
// at session level and in each media section.
func Audit(body string) (*Report, error) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(body)); err != nil {
		return nil, fmt.Errorf("failed to parse session description: %w", err)
	}

	report := &Report{ByType: make(map[string]int)}
	for _, attr := range desc.Attributes {
		if attr.Key == attrKeyCandidate {
			report.Add(classify("", attr.Value))
		}
	}
	for _, media := range desc.MediaDescriptions {
		for _, attr := range media.Attributes {
			if attr.Key == attrKeyCandidate {
				report.Add(classify(media.MediaName.Media, attr.Value))
			}
		}
	}
	return report, nil
}

// AuditCandidate classifies a single trickled candidate. Both the bare
// "candidate:..." form used by ICECandidateInit and the "a=candidate:..."
// SDP line are accepted.
func AuditCandidate(raw string) (Candidate, error) {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "a=")
	if !strings.HasPrefix(value, "candidate:") {
		return Candidate{}, ErrNotCandidate
	}
	return classify("", strings.TrimPrefix(value, "candidate:")), nil
}

// classify uses the ICE parser first and falls back to reading the "typ"
// token for candidates pion cannot parse (unusual transports, extensions).
func classify(media, value string) Candidate {
	c := Candidate{Media: media, Type: CandidateTypeUnknown, Raw: value}

	if parsed, err := ice.UnmarshalCandidate(value); err == nil {
		c.Type = parsed.Type().String()
		c.Address = parsed.Address()
		c.Port = parsed.Port()
		return c
	}

	fields := strings.Fields(value)
	if len(fields) >= 6 {
		c.Address = fields[4]
	}
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] == "typ" {
			c.Type = fields[i+1]
			break
		}
	}
	return c
}
