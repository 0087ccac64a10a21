package agent

import (
	"errors"
	"testing"

	"coach-event-generator/internal/core"
	"coach-event-generator/internal/logger"
	"coach-event-generator/internal/scheduler"
	"coach-event-generator/internal/server"

	"github.com/robfig/cron/v3"
)

type fakeSchedules struct {
	entries map[cron.EntryID]scheduler.ScheduleEntry
	next    cron.EntryID
}

func (f *fakeSchedules) Add(spec, command string) (cron.EntryID, error) {
	if _, err := scheduler.ParseCommand(command, 10); err != nil {
		return 0, err
	}
	f.next++
	f.entries[f.next] = scheduler.ScheduleEntry{Spec: spec, Command: command}
	return f.next, nil
}

func (f *fakeSchedules) Remove(id int) { delete(f.entries, cron.EntryID(id)) }

func (f *fakeSchedules) GetAll() map[cron.EntryID]scheduler.ScheduleEntry { return f.entries }

type fakeScripts map[string]string

func (f fakeScripts) GetScriptList() ([]string, error) {
	var names []string
	for n := range f {
		names = append(names, n)
	}
	return names, nil
}

func (f fakeScripts) GetScriptCode(name string) (string, error) {
	code, ok := f[name]
	if !ok {
		return "", errors.New("not found")
	}
	return code, nil
}

func (f fakeScripts) SaveScriptCode(name, code string) error { f[name] = code; return nil }

func (f fakeScripts) DeleteScript(name string) error { delete(f, name); return nil }

func newTestHandler() (*CommandHandler, core.CommandChannel, *fakeSchedules, fakeScripts, *server.Hub) {
	cmds := make(core.CommandChannel, 4)
	sched := &fakeSchedules{entries: map[cron.EntryID]scheduler.ScheduleEntry{}}
	scripts := fakeScripts{}
	h := NewCommandHandler(cmds, sched, scripts, 10, logger.Nop())
	return h, cmds, sched, scripts, server.NewHub(logger.Nop())
}

func frame(s string) server.Message { return server.Message{Raw: []byte(s)} }

func TestHandlerQueuesCommands(t *testing.T) {
	tests := []struct {
		frame string
		want  core.Command
	}{
		{`{"type":"send","payload":{"line":"TEMP 2 19"}}`, core.Command{Type: core.CmdSend, Intent: core.Temperature{Cabin: 2, Value: 19}}},
		{`{"type":"random"}`, core.Command{Type: core.CmdSendRandom}},
		{`{"type":"demo"}`, core.Command{Type: core.CmdRunDemo}},
		{`{"type":"runScript","payload":{"name":"drill.lua"}}`, core.Command{Type: core.CmdRunScript, Name: "drill.lua"}},
		{`{"type":"stopScript"}`, core.Command{Type: core.CmdStopScript}},
	}
	for _, tt := range tests {
		h, cmds, _, _, hub := newTestHandler()
		h.Handle(frame(tt.frame), hub)

		select {
		case got := <-cmds:
			if got.Type != tt.want.Type || got.Intent != tt.want.Intent || got.Name != tt.want.Name || got.Origin != core.OriginWeb {
				t.Errorf("%s: got %+v", tt.frame, got)
			}
		default:
			t.Errorf("%s: nothing queued", tt.frame)
		}
	}
}

func TestHandlerRejectsBadFrames(t *testing.T) {
	for _, f := range []string{
		`not json`,
		`{"type":"send","payload":{"line":"LIGHT 12 ON"}}`,
		`{"type":"send","payload":{"line":"TEMP 1 99"}}`,
		`{"type":"send","payload":{"line":42}}`,
		`{"type":"runScript"}`,
		`{"type":"setColor"}`,
	} {
		h, cmds, _, _, hub := newTestHandler()
		h.Handle(frame(f), hub)
		if len(cmds) != 0 {
			t.Errorf("%s queued a command", f)
		}
	}
}

func TestHandlerEditsSchedulesAndScripts(t *testing.T) {
	h, _, sched, scripts, hub := newTestHandler()

	h.Handle(frame(`{"type":"addSchedule","payload":{"spec":"@hourly","command":"send STATUS"}}`), hub)
	h.Handle(frame(`{"type":"addSchedule","payload":{"spec":"@hourly","command":"power on"}}`), hub)
	if len(sched.entries) != 1 {
		t.Fatalf("schedules %+v", sched.entries)
	}
	h.Handle(frame(`{"type":"removeSchedule","payload":{"id":"1"}}`), hub)
	if len(sched.entries) != 0 {
		t.Fatalf("schedule not removed: %+v", sched.entries)
	}

	h.Handle(frame(`{"type":"saveScriptCode","payload":{"name":"a.lua","code":"status()"}}`), hub)
	if scripts["a.lua"] != "status()" {
		t.Fatalf("script not saved: %v", scripts)
	}
	h.Handle(frame(`{"type":"deleteScript","payload":{"name":"a.lua"}}`), hub)
	if len(scripts) != 0 {
		t.Fatalf("script not deleted: %v", scripts)
	}
}
