// Package scheduler fires generator commands on cron schedules.
package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"coach-event-generator/internal/core"
	"coach-event-generator/internal/logger"
	"coach-event-generator/internal/protocol"

	"github.com/robfig/cron/v3"
)

// ErrBadCommand is returned for a schedule command that cannot be run.
var ErrBadCommand = errors.New("invalid schedule command")

// ScheduleEntry is a saved schedule.
type ScheduleEntry struct {
	Spec    string `json:"spec"`
	Command string `json:"command"`
}

// Scheduler manages cron jobs and persists them to a JSON file.
type Scheduler struct {
	cron           *cron.Cron
	store          map[cron.EntryID]ScheduleEntry
	commandChannel core.CommandChannel
	cabins         int
	log            *logger.Logger
	mu             sync.RWMutex
	schedulesFile  string
}

// NewScheduler creates a scheduler and restores saved schedules.
func NewScheduler(cmdChan core.CommandChannel, schedulesFile string, cabins int, log *logger.Logger) *Scheduler {
	s := &Scheduler{
		cron:           cron.New(),
		store:          make(map[cron.EntryID]ScheduleEntry),
		commandChannel: cmdChan,
		cabins:         cabins,
		log:            log,
		schedulesFile:  schedulesFile,
	}
	s.load()
	return s
}

// Start begins firing jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Infow("[Scheduler] Started", "entries", len(s.GetAll()))
}

// Stop halts the ticker and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Infow("[Scheduler] Stopped")
}

// ParseCommand turns a schedule command into the generator command it fires.
// Accepted forms: "random", "demo", "script NAME.lua" and "send LINE".
func ParseCommand(command string, cabins int) (core.Command, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(command), " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "random":
		if rest == "" {
			return core.Command{Type: core.CmdSendRandom, Origin: core.OriginSchedule}, nil
		}
	case "demo":
		if rest == "" {
			return core.Command{Type: core.CmdRunDemo, Origin: core.OriginSchedule}, nil
		}
	case "script":
		if strings.HasSuffix(rest, ".lua") && !strings.ContainsAny(rest, "/\\ ") {
			return core.Command{Type: core.CmdRunScript, Name: rest, Origin: core.OriginSchedule}, nil
		}
	case "send":
		in, err := protocol.Parse(rest)
		if err == nil {
			err = core.Validate(in, cabins)
		}
		if err != nil {
			return core.Command{}, fmt.Errorf("%w: %w", ErrBadCommand, err)
		}
		return core.Command{Type: core.CmdSend, Intent: in, Origin: core.OriginSchedule}, nil
	}
	return core.Command{}, fmt.Errorf("%w: %q", ErrBadCommand, command)
}

// Add validates and registers a new job.
func (s *Scheduler) Add(spec, command string) (cron.EntryID, error) {
	if _, err := ParseCommand(command, s.cabins); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() { s.execute(command) })
	if err != nil {
		return 0, fmt.Errorf("invalid cron spec '%s': %w", spec, err)
	}
	s.store[id] = ScheduleEntry{Spec: spec, Command: command}
	s.save()
	s.log.Infow("[Scheduler] Added schedule", "id", id, "spec", spec, "command", command)
	return id, nil
}

// Remove deletes a job. Unknown ids are ignored.
func (s *Scheduler) Remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID := cron.EntryID(id)
	if _, ok := s.store[entryID]; !ok {
		return
	}
	s.cron.Remove(entryID)
	delete(s.store, entryID)
	s.save()
	s.log.Infow("[Scheduler] Removed schedule", "id", id)
}

// GetAll returns a copy of the current schedules.
func (s *Scheduler) GetAll() map[cron.EntryID]ScheduleEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	newMap := make(map[cron.EntryID]ScheduleEntry, len(s.store))
	for k, v := range s.store {
		newMap[k] = v
	}
	return newMap
}

// execute hands the command to the orchestrator without blocking the cron goroutine.
func (s *Scheduler) execute(command string) {
	cmd, err := ParseCommand(command, s.cabins)
	if err != nil {
		s.log.Warnw("[Scheduler] Skipping invalid command", "command", command, "err", err)
		return
	}
	select {
	case s.commandChannel <- cmd:
		s.log.Debugw("[Scheduler] Fired", "command", command)
	default:
		s.log.Warnw("[Scheduler] Command queue full, dropping", "command", command)
	}
}

func (s *Scheduler) save() {
	if s.schedulesFile == "" {
		return
	}
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		s.log.Errorw("[Scheduler] Marshalling schedules failed", "err", err)
		return
	}
	if err := os.WriteFile(s.schedulesFile, data, 0o644); err != nil {
		s.log.Errorw("[Scheduler] Writing schedules failed", "file", s.schedulesFile, "err", err)
	}
}

func (s *Scheduler) load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedulesFile == "" {
		return
	}
	data, err := os.ReadFile(s.schedulesFile)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Errorw("[Scheduler] Reading schedules failed", "file", s.schedulesFile, "err", err)
		}
		return
	}

	tempStore := make(map[cron.EntryID]ScheduleEntry)
	if err := json.Unmarshal(data, &tempStore); err != nil {
		s.log.Errorw("[Scheduler] Decoding schedules failed", "file", s.schedulesFile, "err", err)
		return
	}

	s.log.Infow("[Scheduler] Loading schedules", "count", len(tempStore), "file", s.schedulesFile)
	for _, entry := range tempStore {
		jobEntry := entry
		if _, err := ParseCommand(jobEntry.Command, s.cabins); err != nil {
			s.log.Warnw("[Scheduler] Dropping saved schedule", "command", jobEntry.Command, "err", err)
			continue
		}
		newID, err := s.cron.AddFunc(jobEntry.Spec, func() { s.execute(jobEntry.Command) })
		if err != nil {
			s.log.Warnw("[Scheduler] Dropping saved schedule", "spec", jobEntry.Spec, "err", err)
			continue
		}
		s.store[newID] = jobEntry
	}
}
