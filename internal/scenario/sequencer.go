// Package scenario runs scripted, time-paced command sequences.
package scenario

import (
	"context"
	"time"

	"coach-event-generator/internal/core"
	"coach-event-generator/internal/logger"
	"coach-event-generator/internal/protocol"
)

// Step is one command and the delay that follows it.
type Step struct {
	Intent core.Intent
	Delay  time.Duration
}

// Group is a top-level stage of a scenario: its steps, then a pause.
type Group struct {
	Name  string
	Steps []Step
	Pause time.Duration
}

// Flatten returns the scenario as a plain step list, folding each group's pause
// into the delay of its last step.
func Flatten(groups []Group) []Step {
	var out []Step
	for _, g := range groups {
		for i, st := range g.Steps {
			if i == len(g.Steps)-1 {
				st.Delay += g.Pause
			}
			out = append(out, st)
		}
	}
	return out
}

// Sender delivers one intent to the link.
type Sender interface {
	Send(ctx context.Context, in core.Intent) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, in core.Intent) error

func (f SenderFunc) Send(ctx context.Context, in core.Intent) error { return f(ctx, in) }

// Progress is reported when the sequencer enters a group.
type Progress struct {
	Group int // 1-based
	Total int
	Name  string
}

// GroupResult counts the outcome of one group's sends.
type GroupResult struct {
	Name   string `json:"name"`
	Sent   int    `json:"sent"`
	Failed int    `json:"failed"`
}

// Report describes a finished or aborted run.
type Report struct {
	Groups    []GroupResult `json:"groups"`
	Completed bool          `json:"completed"`
}

// Failed returns the total number of failed sends.
func (r Report) Failed() int {
	n := 0
	for _, g := range r.Groups {
		n += g.Failed
	}
	return n
}

// Sequencer walks a scenario strictly forward. A failed send is counted and
// logged but never stops or repeats a step. Cancellation is honoured only at
// step boundaries, which include the delays between steps.
type Sequencer struct {
	groups     []Group
	sender     Sender
	log        *logger.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	onProgress func(Progress)
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithSleep replaces the delay implementation.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Sequencer) { s.sleep = fn }
}

// WithProgress registers a callback invoked as each group starts.
func WithProgress(fn func(Progress)) Option {
	return func(s *Sequencer) { s.onProgress = fn }
}

// NewSequencer creates a Sequencer over groups.
func NewSequencer(groups []Group, sender Sender, log *logger.Logger, opts ...Option) *Sequencer {
	s := &Sequencer{
		groups: groups,
		sender: sender,
		log:    log,
		sleep:  sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes the scenario. It returns ctx's error if the run was aborted; the
// report then covers the groups reached so far.
func (s *Sequencer) Run(ctx context.Context) (Report, error) {
	var report Report

	for gi, g := range s.groups {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		s.log.Infow("[Scenario] Step", "step", gi+1, "of", len(s.groups), "name", g.Name)
		if s.onProgress != nil {
			s.onProgress(Progress{Group: gi + 1, Total: len(s.groups), Name: g.Name})
		}

		res := GroupResult{Name: g.Name}
		for si, st := range g.Steps {
			if si > 0 {
				if err := ctx.Err(); err != nil {
					report.Groups = append(report.Groups, res)
					return report, err
				}
			}

			if err := s.sender.Send(ctx, st.Intent); err != nil {
				res.Failed++
				s.log.Warnw("[Scenario] Send failed, continuing",
					"line", protocol.Encode(st.Intent).Line(), "err", err)
			} else {
				res.Sent++
			}

			if st.Delay > 0 {
				if err := s.sleep(ctx, st.Delay); err != nil {
					report.Groups = append(report.Groups, res)
					return report, err
				}
			}
		}
		report.Groups = append(report.Groups, res)

		if g.Pause > 0 && gi < len(s.groups)-1 {
			if err := s.sleep(ctx, g.Pause); err != nil {
				return report, err
			}
		}
	}

	report.Completed = true
	s.log.Infow("[Scenario] Complete", "failed", report.Failed())
	return report, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
