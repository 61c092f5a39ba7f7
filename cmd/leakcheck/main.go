// leakcheck serves a WebRTC leak-check page and audits what browsers disclose
// in their offers. It also exposes the guard's sanitizer, redactor, auditor
// and browser shim as filters for scripting.
//
//	leakcheck serve --addr :8080
//	leakcheck sanitize config.json
//	leakcheck redact offer.sdp
//	leakcheck audit offer.sdp
//	leakcheck shim > shim.js
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/thesyncim/rtcguard/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	observability.Sync()
	if err != nil {
		os.Exit(1)
	}
}
