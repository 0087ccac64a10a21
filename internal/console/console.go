// Package console is the interactive operator menu.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"coach-event-generator/internal/core"
	"coach-event-generator/internal/link"
	"coach-event-generator/internal/scenario"
)

// Generator is what the menu drives.
type Generator interface {
	SendFrom(ctx context.Context, origin core.Origin, in core.Intent) core.Result
	SendRandomFrom(ctx context.Context, origin core.Origin) core.Result
	RunDemo(ctx context.Context, progress func(scenario.Progress)) (scenario.Report, error)
	Reconnect(ctx context.Context) error
	Cabins() int
}

var menuItems = [][2]string{
	{"1", "Turn light ON in a cabin"},
	{"2", "Turn light OFF in a cabin"},
	{"3", "Adjust temperature in a cabin"},
	{"4", "Trigger EMERGENCY in a cabin"},
	{"5", "Trigger FIRE in a cabin"},
	{"6", "Activate LOW POWER mode"},
	{"7", "Trigger CHAIN PULL"},
	{"8", "Request system STATUS"},
	{"9", "Generate RANDOM event"},
	{"d", "Run DEMO sequence"},
	{"r", "Reconnect the link"},
	{"h", "Show this menu"},
	{"q", "Quit"},
}

var errInvalidInput = errors.New("invalid input")

// Console reads menu choices and turns them into generator commands.
type Console struct {
	gen   Generator
	lines <-chan string
	out   io.Writer
	theme Theme
	pace  time.Duration
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Console.
type Option func(*Console)

// WithTheme replaces the default styling.
func WithTheme(t Theme) Option {
	return func(c *Console) { c.theme = t }
}

// WithSleep replaces the pause taken after each command.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Console) { c.sleep = fn }
}

// New creates a console reading from in and writing to out. pace is the pause
// after every command.
func New(gen Generator, in io.Reader, out io.Writer, pace time.Duration, opts ...Option) *Console {
	c := &Console{
		gen:   gen,
		lines: readLines(in),
		out:   out,
		theme: DefaultTheme(),
		pace:  pace,
		sleep: link.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// readLines feeds lines from r into a channel that is closed at EOF. The
// goroutine outlives Run if r never returns.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

func (c *Console) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	}
}

// Run shows the menu and handles choices until q, EOF or ctx cancellation.
// None of these is an error.
func (c *Console) Run(ctx context.Context) error {
	c.printMenu()

	for {
		fmt.Fprint(c.out, c.theme.Title.Render("Enter command: "))
		line, err := c.readLine(ctx)
		if err != nil {
			fmt.Fprintln(c.out)
			return nil
		}

		choice := strings.ToLower(line)
		if choice == "q" {
			return nil
		}

		err = c.handle(ctx, choice)
		switch {
		case errors.Is(err, io.EOF), ctx.Err() != nil:
			fmt.Fprintln(c.out)
			return nil
		case errors.Is(err, errInvalidInput):
			c.fail("Invalid input")
			continue
		case err != nil:
			c.fail(err.Error())
		}

		if choice != "" && choice != "h" {
			if err := c.sleep(ctx, c.pace); err != nil {
				return nil
			}
		}
	}
}

func (c *Console) handle(ctx context.Context, choice string) error {
	switch choice {
	case "":
		return nil
	case "h":
		c.printMenu()
	case "1", "2":
		cabin, err := c.promptCabin(ctx)
		if err != nil {
			return err
		}
		state := core.LightOn
		if choice == "2" {
			state = core.LightOff
		}
		c.report(c.gen.SendFrom(ctx, core.OriginConsole, core.Light{Cabin: cabin, State: state}))
	case "3":
		cabin, err := c.promptCabin(ctx)
		if err != nil {
			return err
		}
		value, err := c.promptInt(ctx, fmt.Sprintf("Temperature (%d-%d°C): ", core.MinTemperature, core.MaxTemperature))
		if err != nil {
			return err
		}
		if err := core.CheckTemperature(value); err != nil {
			return err
		}
		c.report(c.gen.SendFrom(ctx, core.OriginConsole, core.Temperature{Cabin: cabin, Value: value}))
	case "4":
		cabin, err := c.promptCabin(ctx)
		if err != nil {
			return err
		}
		c.report(c.gen.SendFrom(ctx, core.OriginConsole, core.Emergency{Cabin: cabin}))
	case "5":
		cabin, err := c.promptCabin(ctx)
		if err != nil {
			return err
		}
		c.report(c.gen.SendFrom(ctx, core.OriginConsole, core.Fire{Cabin: cabin}))
	case "6":
		c.report(c.gen.SendFrom(ctx, core.OriginConsole, core.PowerLow{}))
	case "7":
		c.report(c.gen.SendFrom(ctx, core.OriginConsole, core.ChainPull{}))
	case "8":
		c.report(c.gen.SendFrom(ctx, core.OriginConsole, core.StatusRequest{}))
	case "9":
		c.report(c.gen.SendRandomFrom(ctx, core.OriginConsole))
	case "d":
		return c.runDemo(ctx)
	case "r":
		if err := c.gen.Reconnect(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, c.theme.OK.Render("✓ Reconnected"))
	default:
		c.fail("Invalid command")
	}
	return nil
}

func (c *Console) runDemo(ctx context.Context) error {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(c.out, c.theme.Banner.Render(rule+"\nStarting Demo Sequence\n"+rule))

	report, err := c.gen.RunDemo(ctx, func(p scenario.Progress) {
		fmt.Fprintf(c.out, "\nStep %d: %s\n", p.Group, p.Name)
	})
	if err != nil {
		return err
	}

	msg := "Demo Sequence Complete"
	if n := report.Failed(); n > 0 {
		msg += fmt.Sprintf(" (%d commands failed)", n)
	}
	fmt.Fprintln(c.out, c.theme.Banner.Render("\n"+rule+"\n"+msg+"\n"+rule))
	return nil
}

func (c *Console) promptInt(ctx context.Context, label string) (int, error) {
	fmt.Fprint(c.out, label)
	line, err := c.readLine(ctx)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(line)
	if err != nil {
		return 0, errInvalidInput
	}
	return v, nil
}

func (c *Console) promptCabin(ctx context.Context) (core.CabinID, error) {
	n := c.gen.Cabins()
	v, err := c.promptInt(ctx, fmt.Sprintf("Cabin ID (0-%d): ", n-1))
	if err != nil {
		return 0, err
	}
	cabin := core.CabinID(v)
	if err := core.CheckCabin(cabin, n); err != nil {
		return 0, err
	}
	return cabin, nil
}

func (c *Console) report(res core.Result) {
	if res.Err != nil {
		c.fail("Error sending command: " + res.Err.Error())
		return
	}
	fmt.Fprintln(c.out, c.theme.OK.Render("→ Sent: "+res.Line))
}

func (c *Console) fail(msg string) {
	fmt.Fprintln(c.out, c.theme.Err.Render("✗ "+msg))
}

func (c *Console) printMenu() {
	var b strings.Builder
	b.WriteString(c.theme.Title.Render("RTOS Coach System - Event Generator"))
	b.WriteString("\n\n")
	for _, item := range menuItems {
		fmt.Fprintf(&b, "  %s  %s\n", c.theme.Key.Render(item[0]), item[1])
	}
	b.WriteString(c.theme.Help.Render("Lines are sent to the coach controller over serial."))
	fmt.Fprintln(c.out, c.theme.Card.Render(b.String()))
}
