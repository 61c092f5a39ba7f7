package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const offerSDP = "v=0\r\n" +
	"o=- 4215775240449105457 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=application 9 UDP/DTLS/SCTP webrtc-datachannel\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=candidate:1 1 udp 2130706431 192.168.1.5 54321 typ host\r\n" +
	"a=candidate:3 1 udp 1686052607 203.0.113.7 61000 typ srflx raddr 0.0.0.0 rport 0\r\n" +
	"a=mid:0\r\n"

// run executes the CLI with args and stdin from a clean working directory so
// no stray leakcheck.yaml is picked up.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSanitizeCommand(t *testing.T) {
	out, err := run(t, `{"iceServers":[{"urls":"stun:s.example.com"},{"urls":"turn:t.example.com"}],"iceCandidatePoolSize":4}`,
		"sanitize")
	require.NoError(t, err)
	assert.JSONEq(t, `{"iceCandidatePoolSize":0,"iceServers":[{"urls":["turn:t.example.com"]}]}`, out)
}

func TestSanitizeCommand_PolicyFlags(t *testing.T) {
	out, err := run(t, `{"iceServers":[{"urls":"stun:s.example.com"}]}`,
		"sanitize", "--fallback", "keep-discovery", "--relay-only")
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"iceCandidatePoolSize": 0,
		"iceTransportPolicy": "relay",
		"iceServers": [{"urls": ["stun:s.example.com"]}]
	}`, out)
}

func TestSanitizeCommand_InvalidFallback(t *testing.T) {
	_, err := run(t, `{}`, "sanitize", "--fallback", "lenient")
	assert.Error(t, err)
}

func TestRedactCommand_RawSDP(t *testing.T) {
	out, err := run(t, offerSDP, "redact")
	require.NoError(t, err)
	assert.NotContains(t, out, "typ host")
	assert.Contains(t, out, "typ srflx")
	assert.Equal(t, strings.Replace(offerSDP, "a=candidate:1 1 udp 2130706431 192.168.1.5 54321 typ host\r\n", "", 1), out)
}

func TestRedactCommand_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offer.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"offer","sdp":"a=candidate:1 1 udp 1 10.0.0.1 9 typ host\r\na=mid:0\r\n"}`), 0o600))

	out, err := run(t, "", "redact", path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"offer","sdp":"a=mid:0\r\n"}`, out)
}

func TestAuditCommand(t *testing.T) {
	out, err := run(t, offerSDP, "audit")
	require.NoError(t, err)
	assert.Contains(t, out, `"host": 1`)
	assert.Contains(t, out, `"srflx": 1`)
	assert.Contains(t, out, "192.168.1.5")

	_, err = run(t, offerSDP, "audit", "--fail")
	assert.ErrorIs(t, err, errLeaking)
}

func TestShimCommand(t *testing.T) {
	out, err := run(t, "", "shim", "--relay-only")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "(function (policy) {"))
	assert.Contains(t, out, `"relayOnly":true`)
}

func TestConfigFileFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("guard:\n  fallback: keep-discovery\n"), 0o600))

	out, err := run(t, "", "shim", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"fallback":"keep-discovery"`)
}
