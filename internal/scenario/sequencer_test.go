package scenario

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"coach-event-generator/internal/core"
	"coach-event-generator/internal/logger"
	"coach-event-generator/internal/protocol"
)

// recorder captures the timeline of sends and sleeps.
type recorder struct {
	events []string
	fail   bool
}

func (r *recorder) Send(_ context.Context, in core.Intent) error {
	r.events = append(r.events, protocol.Encode(in).Line())
	if r.fail {
		return errors.New("link down")
	}
	return nil
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.events = append(r.events, "sleep "+d.String())
	return nil
}

func TestDemoTimeline(t *testing.T) {
	rec := &recorder{}
	seq := NewSequencer(Demo(time.Second), rec, logger.Nop(), WithSleep(rec.sleep))

	report, err := seq.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{
		"LIGHT 0 ON", "sleep 500ms",
		"LIGHT 1 ON", "sleep 500ms",
		"LIGHT 2 ON", "sleep 500ms",
		"LIGHT 3 ON", "sleep 500ms",
		"LIGHT 4 ON", "sleep 500ms",
		"sleep 2s",
		"TEMP 0 20", "sleep 500ms",
		"TEMP 1 21", "sleep 500ms",
		"TEMP 2 22", "sleep 500ms",
		"TEMP 3 23", "sleep 500ms",
		"TEMP 4 24", "sleep 500ms",
		"sleep 2s",
		"EMERGENCY 3", "sleep 3s",
		"FIRE 7", "sleep 3s",
		"POWER LOW", "sleep 2s",
		"CHAIN PULL", "sleep 2s",
		"STATUS",
	}
	if !reflect.DeepEqual(rec.events, want) {
		t.Fatalf("timeline mismatch\n got: %q\nwant: %q", rec.events, want)
	}
	if !report.Completed || len(report.Groups) != 7 || report.Failed() != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestDemoAdvancesThroughFailures(t *testing.T) {
	rec := &recorder{fail: true}
	var progress []int
	seq := NewSequencer(Demo(time.Second), rec, logger.Nop(),
		WithSleep(rec.sleep),
		WithProgress(func(p Progress) { progress = append(progress, p.Group) }),
	)

	report, err := seq.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Completed {
		t.Fatal("failed sends must not halt the sequence")
	}
	if !reflect.DeepEqual(progress, []int{1, 2, 3, 4, 5, 6, 7}) {
		t.Fatalf("groups entered: %v", progress)
	}
	if report.Failed() != 15 {
		t.Fatalf("failed = %d, want 15", report.Failed())
	}
	for _, g := range report.Groups {
		if g.Sent != 0 {
			t.Fatalf("group %q reports sends on a dead link", g.Name)
		}
	}
}

func TestDemoGroupOrder(t *testing.T) {
	groups := Demo(time.Second)
	if len(groups) != 7 {
		t.Fatalf("got %d groups, want 7", len(groups))
	}
	firstKinds := []core.Kind{
		core.KindLight, core.KindTemperature, core.KindEmergency, core.KindFire,
		core.KindPowerLow, core.KindChainPull, core.KindStatusRequest,
	}
	for i, g := range groups {
		if k := g.Steps[0].Intent.Kind(); k != firstKinds[i] {
			t.Errorf("group %d starts with %s, want %s", i+1, k, firstKinds[i])
		}
	}
	if groups[6].Pause != 0 {
		t.Error("terminal group must not pause")
	}
}

func TestFlattenFoldsPauses(t *testing.T) {
	steps := Flatten(Demo(time.Second))
	if len(steps) != 15 {
		t.Fatalf("got %d steps, want 15", len(steps))
	}
	if steps[4].Delay != 2500*time.Millisecond {
		t.Fatalf("last light step delay = %v, want 2.5s", steps[4].Delay)
	}
	var total time.Duration
	for _, st := range steps {
		total += st.Delay
	}
	if total != 19*time.Second {
		t.Fatalf("total delay = %v, want 19s", total)
	}
}

func TestRunStopsAtStepBoundaryWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	sender := SenderFunc(func(ctx context.Context, in core.Intent) error {
		err := rec.Send(ctx, in)
		if len(rec.events) == 3 {
			cancel()
		}
		return err
	})
	seq := NewSequencer(Demo(time.Second), sender, logger.Nop(), WithSleep(sleep))

	report, err := seq.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if report.Completed {
		t.Fatal("aborted run reported complete")
	}
	if len(rec.events) != 3 {
		t.Fatalf("sent %d commands after cancel, want exactly 3: %q", len(rec.events), rec.events)
	}
	if len(report.Groups) != 1 || report.Groups[0].Sent != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestRunWithZeroUnitDoesNotSleep(t *testing.T) {
	rec := &recorder{}
	seq := NewSequencer(Demo(0), rec, logger.Nop(), WithSleep(rec.sleep))
	if _, err := seq.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, ev := range rec.events {
		if len(ev) > 5 && ev[:5] == "sleep" {
			t.Fatalf("unexpected %q", ev)
		}
	}
	if len(rec.events) != 15 {
		t.Fatalf("got %d sends, want 15", len(rec.events))
	}
}
