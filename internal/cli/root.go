// Package cli wires the command line to the generator.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"coach-event-generator/internal/agent"
	"coach-event-generator/internal/config"
	"coach-event-generator/internal/console"
	"coach-event-generator/internal/link"
	"coach-event-generator/internal/logger"

	"github.com/spf13/cobra"
)

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, version string) int {
	cmd := newRootCmd(version, nil)
	if err := cmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

type flags struct {
	config   string
	device   string
	baud     int
	cabins   int
	seed     uint64
	logLevel string
}

// env lets tests swap the link and the terminal.
type env struct {
	linkOpts []agent.Option
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
}

func newRootCmd(version string, e *env) *cobra.Command {
	if e == nil {
		e = &env{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	}
	f := &flags{}

	cmd := &cobra.Command{
		Use:          "coachgen [device]",
		Short:        "Coach event generator: drives a coach controller over serial",
		Version:      version,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.device = args[0]
			}
			return withAgent(cmd, f, e, func(ctx context.Context, a *agent.Agent, cfg *config.Config) error {
				c := console.New(a, e.stdin, e.stdout, cfg.Generator.Pace)
				return c.Run(ctx)
			})
		},
	}
	cmd.SetOut(e.stdout)
	cmd.SetErr(e.stderr)

	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.config, "config", "c", "", "config file (default configs/coachgen.yaml if present)")
	pf.StringVarP(&f.device, "device", "d", "", "serial device (overrides link.device)")
	pf.IntVar(&f.baud, "baud", 0, "baud rate (overrides link.baud_rate)")
	pf.IntVar(&f.cabins, "cabins", 0, "number of cabins (overrides generator.cabins)")
	pf.Uint64Var(&f.seed, "seed", 0, "random seed, 0 for unseeded (overrides generator.seed)")
	pf.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")

	cmd.AddCommand(demoCmd(f, e), sendCmd(f, e), randomCmd(f, e))
	return cmd
}

// loadConfig reads the configuration and applies flags the user set.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, err
	}

	pf := cmd.Flags()
	if f.device != "" {
		cfg.Link.Device = f.device
	}
	if pf.Changed("baud") {
		cfg.Link.BaudRate = f.baud
	}
	if pf.Changed("cabins") {
		cfg.Generator.Cabins = f.cabins
	}
	if pf.Changed("seed") {
		cfg.Generator.Seed = f.seed
	}
	if pf.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withAgent opens the link, runs fn and always shuts the generator down.
func withAgent(cmd *cobra.Command, f *flags, e *env, fn func(context.Context, *agent.Agent, *config.Config) error) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		fmt.Fprintf(e.stderr, "✗ %v\n", err)
		return err
	}
	log := logger.Get(cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	a, err := agent.NewAgent(cfg, log, e.linkOpts...)
	if err != nil {
		fmt.Fprintf(e.stderr, "✗ %v\n", err)
		return err
	}
	defer a.Shutdown()

	ctx := cmd.Context()
	if err := a.Connect(ctx); err != nil {
		printTroubleshooting(e.stderr, err)
		return err
	}
	fmt.Fprintf(e.stdout, "✓ Connected to coach controller on %s\n", cfg.Link.Device)
	a.Start()

	return fn(ctx, a, cfg)
}

func printTroubleshooting(w io.Writer, err error) {
	fmt.Fprintf(w, "✗ Failed to connect: %v\n", err)
	if !errors.Is(err, link.ErrOpenFailed) {
		return
	}
	fmt.Fprintln(w, "Tip: Check 'ls /dev/ttyACM*' or 'ls /dev/ttyUSB*'")
	fmt.Fprintln(w, "\nTroubleshooting:")
	fmt.Fprintln(w, "1. Check USB connection")
	fmt.Fprintln(w, "2. Verify the coach controller is running")
	fmt.Fprintln(w, "3. Try a different port: coachgen /dev/ttyUSB0")
}
