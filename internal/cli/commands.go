package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"coach-event-generator/internal/agent"
	"coach-event-generator/internal/config"
	"coach-event-generator/internal/core"
	"coach-event-generator/internal/link"
	"coach-event-generator/internal/protocol"
	"coach-event-generator/internal/scenario"

	"github.com/spf13/cobra"
)

func demoCmd(f *flags, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the demonstration sequence once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAgent(cmd, f, e, func(ctx context.Context, a *agent.Agent, _ *config.Config) error {
				report, err := a.RunDemo(ctx, func(p scenario.Progress) {
					fmt.Fprintf(e.stdout, "Step %d/%d: %s\n", p.Group, p.Total, p.Name)
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(e.stdout, "Demo complete, %d commands failed\n", report.Failed())
				return nil
			})
		},
	}
}

func sendCmd(f *flags, e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "send LINE...",
		Short:   "Send one command line, e.g. send TEMP 3 21",
		Example: "  coachgen send EMERGENCY 3\n  coachgen -d /dev/ttyUSB0 send POWER LOW",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := protocol.Parse(strings.Join(args, " "))
			if err != nil {
				return err
			}
			return withAgent(cmd, f, e, func(ctx context.Context, a *agent.Agent, cfg *config.Config) error {
				if err := core.Validate(in, cfg.Generator.Cabins); err != nil {
					return err
				}
				return printResult(e, a.SendFrom(ctx, core.OriginCLI, in))
			})
		},
	}
}

func randomCmd(f *flags, e *env) *cobra.Command {
	var count int

	c := &cobra.Command{
		Use:   "random",
		Short: "Send random events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return errors.New("--count must be at least 1")
			}
			return withAgent(cmd, f, e, func(ctx context.Context, a *agent.Agent, cfg *config.Config) error {
				var failed int
				for i := 0; i < count; i++ {
					if i > 0 {
						if err := link.Sleep(ctx, cfg.Generator.Pace); err != nil {
							return err
						}
					}
					if err := printResult(e, a.SendRandomFrom(ctx, core.OriginCLI)); err != nil {
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d commands failed", failed, count)
				}
				return nil
			})
		},
	}
	c.Flags().IntVarP(&count, "count", "n", 1, "number of events to send")
	return c
}

func printResult(e *env, res core.Result) error {
	if res.Err != nil {
		fmt.Fprintf(e.stderr, "✗ Error sending command %q: %v\n", res.Line, res.Err)
		return res.Err
	}
	fmt.Fprintf(e.stdout, "→ Sent: %s\n", res.Line)
	return nil
}
