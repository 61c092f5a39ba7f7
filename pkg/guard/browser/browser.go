// Package browser carries the in-page counterpart of package guard: a script
// that replaces window.RTCPeerConnection with a sanitizing, redacting
// wrapper, and helpers to inject it into Chrome through go-rod before any
// page script runs.
package browser

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/thesyncim/rtcguard/pkg/guard"
)

//go:embed shim.js
var shimSource string

// Options selects the policy rendered into the script.
type Options struct {
	Policy guard.Policy

	// CandidateFilter withholds host and mDNS candidates from icecandidate
	// listeners and the onicecandidate handler.
	CandidateFilter bool
}

// DefaultOptions returns the strict policy with candidate filtering.
func DefaultOptions() Options {
	return Options{Policy: guard.DefaultPolicy(), CandidateFilter: true}
}

type scriptPolicy struct {
	Fallback        string `json:"fallback"`
	RelayOnly       bool   `json:"relayOnly"`
	CandidateFilter bool   `json:"candidateFilter"`
}

// Script renders the shim for opts. The result is a self-invoking script
// suitable for a <script> tag or Page.addScriptToEvaluateOnNewDocument.
func Script(opts Options) (string, error) {
	switch opts.Policy.Fallback {
	case guard.FallbackStrict, guard.FallbackKeepDiscovery:
	default:
		return "", fmt.Errorf("%w: %v", guard.ErrUnknownPolicy, opts.Policy.Fallback)
	}

	arg, err := json.Marshal(scriptPolicy{
		Fallback:        opts.Policy.Fallback.String(),
		RelayOnly:       opts.Policy.RelayOnly,
		CandidateFilter: opts.CandidateFilter,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode shim policy: %w", err)
	}
	return shimSource + "(" + string(arg) + ");\n", nil
}

// Inject registers the shim on page so it runs in every new document before
// the page's own scripts. The returned function unregisters it; documents
// already loaded keep the wrapper.
func Inject(page *rod.Page, opts Options) (remove func() error, err error) {
	js, err := Script(opts)
	if err != nil {
		return nil, err
	}
	remove, err = page.EvalOnNewDocument(js)
	if err != nil {
		return nil, fmt.Errorf("failed to register shim: %w", err)
	}
	return remove, nil
}
