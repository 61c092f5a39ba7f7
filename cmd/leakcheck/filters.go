package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/thesyncim/rtcguard/pkg/guard"
	"github.com/thesyncim/rtcguard/pkg/guard/browser"
)

// errLeaking is returned by audit --fail when a leak is found.
var errLeaking = errors.New("session description discloses local addresses")

func newSanitizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sanitize [file]",
		Short: "Rewrite an RTCConfiguration JSON document the way the guard does",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			cfg, err := guard.ParseConfiguration(data)
			if err != nil {
				return err
			}

			// The sanitizer never calls the factory.
			g, err := a.guard(guard.FactoryFunc(webrtc.NewPeerConnection))
			if err != nil {
				return err
			}
			sanitized, _ := g.Sanitize(cfg)

			out, err := guard.MarshalConfiguration(sanitized)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}

func newRedactCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "redact [file]",
		Short: "Strip host and mDNS candidate lines from a session description",
		Long: `Reads raw SDP, or a JSON {"type","sdp"} description, from the file or
standard input and writes it back without address-revealing candidate lines.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			desc, isJSON, err := parseDescription(data)
			if err != nil {
				return err
			}
			redacted := guard.RedactDescription(desc)

			if !isJSON {
				_, err = io.WriteString(cmd.OutOrStdout(), redacted.SDP)
				return err
			}
			return writeJSON(cmd.OutOrStdout(), redacted)
		},
	}
}

func newAuditCmd(a *app) *cobra.Command {
	var fail bool
	cmd := &cobra.Command{
		Use:   "audit [file]",
		Short: "List the ICE candidates a session description discloses",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			desc, _, err := parseDescription(data)
			if err != nil {
				return err
			}

			report, err := guard.Audit(desc.SDP)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if fail && report.Leaking() {
				return errLeaking
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fail, "fail", false, "exit non-zero when a local address is disclosed")
	return cmd
}

func newShimCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shim",
		Short: "Print the browser shim rendered with the configured policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := a.cfg.Guard.Policy()
			if err != nil {
				return err
			}
			js, err := browser.Script(browser.Options{
				Policy:          policy,
				CandidateFilter: a.cfg.Guard.CandidateFilter,
			})
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), js)
			return err
		},
	}
}

// readInput reads the file named by args[0], or standard input.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read standard input: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return data, nil
}

// parseDescription accepts raw SDP or a JSON session description.
func parseDescription(data []byte) (webrtc.SessionDescription, bool, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return webrtc.SessionDescription{SDP: string(data)}, false, nil
	}
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(trimmed, &desc); err != nil {
		return desc, true, fmt.Errorf("failed to decode session description: %w", err)
	}
	return desc, true, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
