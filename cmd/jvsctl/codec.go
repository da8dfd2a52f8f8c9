package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/danmuck/jvsctl/internal/protocol/jvs"
	"github.com/danmuck/jvsctl/internal/transport"
	"github.com/spf13/cobra"
)

// parseHex accepts bytes split across args, with optional spaces, colons or 0x prefixes.
func parseHex(args []string) ([]byte, error) {
	var b strings.Builder
	for _, arg := range args {
		for _, part := range strings.FieldsFunc(arg, func(r rune) bool { return r == ' ' || r == ':' || r == ',' }) {
			part = strings.TrimPrefix(strings.ToLower(part), "0x")
			b.WriteString(part)
		}
	}
	out, err := hex.DecodeString(b.String())
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return out, nil
}

func spaced(b []byte) string {
	return fmt.Sprintf("% X", b)
}

func checksumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checksum [hex payload]",
		Short: "Print the SUM byte for a payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := parseHex(args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%02X\n", jvs.Checksum(payload))
			return nil
		},
	}
}

func encodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode [hex payload]",
		Short: "Print the complete frame for a payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := parseHex(args)
			if err != nil {
				return err
			}
			frame, err := jvs.Encode(payload)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), spaced(frame))
			return nil
		},
	}
}

func decodeCmd(opts *globalOptions) *cobra.Command {
	var afterSync bool
	cmd := &cobra.Command{
		Use:   "decode <hex frame>",
		Short: "Decode one frame from hex bytes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			raw, err := parseHex(args)
			if err != nil {
				return err
			}

			mem := transport.NewMem()
			mem.Feed(raw)
			_ = mem.Close()
			h := jvs.NewHandler(mem, jvs.WithLengthCheck(p.LengthCheck), jvs.WithLogger(opts.logger(cmd, p)))

			var frame jvs.Frame
			if afterSync {
				frame, err = h.ReceiveAfterSync()
			} else {
				frame, err = h.Receive()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "payload=%s length=%d status=%t\n", spaced(frame.Payload), frame.Length, frame.Status)
			if report := mem.Written(); len(report) > 0 {
				fmt.Fprintf(out, "report=%s\n", spaced(report))
			}
			if rest := mem.Available(); rest > 0 {
				fmt.Fprintf(out, "trailing=%d\n", rest)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&afterSync, "after-sync", false, "input starts at LEN; SYNC was already consumed")
	return cmd
}
