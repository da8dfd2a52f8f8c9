package main

import (
	"fmt"
	"os"

	"github.com/danmuck/jvsctl/internal/config"
	"github.com/danmuck/jvsctl/internal/protocol/jvs"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	profile     string
	kind        string
	device      string
	baud        int
	address     string
	lengthCheck string
	verbose     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "jvsctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "jvsctl",
		Short: "Build, decode and exchange JVS frames",
		Long: `jvsctl speaks the SYNC/LEN/PAYLOAD/SUM framing used between a
controller and its peripheral.

Offline commands (checksum, encode, decode) work on hex bytes given as
arguments. Link commands (send, listen, ports) open a serial port or a
TCP byte-stream bridge.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.profile, "profile", "", "jvsctl profile (TOML)")
	pf.StringVar(&opts.kind, "transport", "serial", "transport kind: serial|tcp")
	pf.StringVar(&opts.device, "device", "/dev/ttyUSB0", "serial device")
	pf.IntVar(&opts.baud, "baud", 115200, "serial baud rate")
	pf.StringVar(&opts.address, "address", "", "tcp address of a byte-stream bridge")
	pf.StringVar(&opts.lengthCheck, "length-check", "blocking", "length check: exact|low_byte|blocking")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "hex dump frames to stderr")

	root.AddCommand(
		checksumCmd(),
		encodeCmd(),
		decodeCmd(opts),
		sendCmd(opts),
		listenCmd(opts),
		portsCmd(),
	)
	return root
}

// resolve layers the profile file under explicitly set flags.
func (o *globalOptions) resolve(cmd *cobra.Command) (config.Profile, error) {
	p := config.DefaultProfile()
	if o.profile != "" {
		loaded, err := config.LoadProfile(o.profile)
		if err != nil {
			return config.Profile{}, err
		}
		p = loaded
	}

	if changed(cmd, "transport") {
		p.Transport.Kind = o.kind
	}
	if changed(cmd, "device") {
		p.Transport.Device = o.device
	}
	if changed(cmd, "baud") {
		p.Transport.Baud = o.baud
	}
	if changed(cmd, "address") {
		p.Transport.Address = o.address
	}
	if changed(cmd, "length-check") {
		check, err := jvs.ParseLengthCheck(o.lengthCheck)
		if err != nil {
			return config.Profile{}, err
		}
		p.LengthCheck = check
	}
	if o.verbose {
		p.LogLevel = zerolog.DebugLevel
	}
	p.Transport = p.Transport.WithDefaults()
	return p, nil
}

func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flag(name)
	return f != nil && f.Changed
}

func (o *globalOptions) logger(cmd *cobra.Command, p config.Profile) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).Level(p.LogLevel)
}
