package guard

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

// candidatePrefix starts every ICE candidate attribute line in an SDP body.
const candidatePrefix = "a=candidate:"

// leakTokens mark a candidate line as revealing a local address.
var leakTokens = []string{"host", "mDNS"}

// IsLeakyCandidateLine reports whether line is a candidate attribute whose
// payload mentions a host or mDNS candidate. A trailing end-of-line delimiter
// is ignored.
func IsLeakyCandidateLine(line string) bool {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, candidatePrefix) {
		return false
	}
	payload := line[len(candidatePrefix):]
	for _, tok := range leakTokens {
		if strings.Contains(payload, tok) {
			return true
		}
	}
	return false
}

// RedactSDP removes every leaky candidate line, together with its line
// terminator, from sdp. All other bytes are returned unchanged. Both "\r\n"
// and "\n" terminated lines are handled, as is a final unterminated line.
//
// RedactSDP is idempotent.
func RedactSDP(sdp string) string {
	if !strings.Contains(sdp, candidatePrefix) {
		return sdp
	}

	var b strings.Builder
	b.Grow(len(sdp))

	rest := sdp
	for rest != "" {
		var line string
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			line, rest = rest[:i+1], rest[i+1:]
		} else {
			line, rest = rest, ""
		}
		if IsLeakyCandidateLine(line) {
			continue
		}
		b.WriteString(line)
	}
	return b.String()
}

// RedactDescription returns desc with RedactSDP applied to its body.
// The description type is preserved.
func RedactDescription(desc webrtc.SessionDescription) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: desc.Type, SDP: RedactSDP(desc.SDP)}
}

// IsLeakyCandidate reports whether a gathered candidate reveals a local
// address: a host candidate, or one advertised under an mDNS name.
func IsLeakyCandidate(c *webrtc.ICECandidate) bool {
	if c == nil {
		return false
	}
	if c.Typ == webrtc.ICECandidateTypeHost || strings.HasSuffix(c.Address, ".local") {
		return true
	}
	return IsLeakyCandidateLine("a=" + c.ToJSON().Candidate)
}
