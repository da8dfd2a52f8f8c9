package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/danmuck/jvsctl/internal/protocol/jvs"
	"github.com/danmuck/jvsctl/internal/transport"
	"github.com/spf13/cobra"
)

func openHandler(ctx context.Context, cmd *cobra.Command, opts *globalOptions) (*jvs.Handler, transport.Conn, error) {
	p, err := opts.resolve(cmd)
	if err != nil {
		return nil, nil, err
	}
	conn, err := transport.Open(ctx, p.Transport)
	if err != nil {
		return nil, nil, err
	}
	logger := opts.logger(cmd, p).With().Str("transport", conn.Name()).Logger()
	h := jvs.NewHandler(conn, jvs.WithLengthCheck(p.LengthCheck), jvs.WithLogger(logger))
	return h, conn, nil
}

// readFrame resynchronizes and decodes one frame.
func readFrame(h *jvs.Handler) (jvs.Frame, int, error) {
	dropped, err := h.Resync()
	if err != nil {
		return jvs.Frame{}, dropped, err
	}
	frame, err := h.ReceiveAfterSync()
	return frame, dropped, err
}

func printFrame(cmd *cobra.Command, frame jvs.Frame, err error) {
	out := cmd.OutOrStdout()
	if err != nil {
		fmt.Fprintf(out, "%s rx length=%d status=false err=%v\n", time.Now().Format(time.TimeOnly), frame.Length, err)
		return
	}
	fmt.Fprintf(out, "%s rx length=%d payload=%s\n", time.Now().Format(time.TimeOnly), frame.Length, spaced(frame.Payload))
}

func sendCmd(opts *globalOptions) *cobra.Command {
	var (
		reply   bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "send <hex payload>",
		Short: "Send one frame and optionally print the reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := parseHex(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			h, conn, err := openHandler(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer conn.Close()
			// Closing the transport is the only way to unblock a read.
			stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
			defer stop()

			if err := h.Send(payload); err != nil {
				return err
			}
			frame, _ := jvs.Encode(payload)
			fmt.Fprintf(cmd.OutOrStdout(), "tx %s\n", spaced(frame))
			if !reply {
				return nil
			}

			got, _, err := readFrame(h)
			if ctx.Err() != nil {
				return fmt.Errorf("no reply within %s", timeout)
			}
			printFrame(cmd, got, err)
			return err
		},
	}
	cmd.Flags().BoolVar(&reply, "reply", true, "wait for and print one reply frame")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "overall deadline for open, send and reply")
	return cmd
}

func listenCmd(opts *globalOptions) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print frames as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			h, conn, err := openHandler(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer conn.Close()
			unhook := context.AfterFunc(ctx, func() { _ = conn.Close() })
			defer unhook()

			for seen := 0; count <= 0 || seen < count; seen++ {
				frame, _, err := readFrame(h)
				if ctx.Err() != nil {
					return nil
				}
				if err != nil && !isFrameError(err) {
					return err
				}
				printFrame(cmd, frame, err)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "stop after n frames (0 = until interrupted)")
	return cmd
}

func isFrameError(err error) bool {
	return errors.Is(err, jvs.ErrChecksumMismatch) ||
		errors.Is(err, jvs.ErrLengthMismatch) ||
		errors.Is(err, jvs.ErrInvalidLength)
}

func portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := transport.SerialPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}
