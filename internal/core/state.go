package core

import "sync"

// State holds the generator's runtime view of the link and traffic counters.
type State struct {
	mu              sync.RWMutex
	LinkUp          bool   `json:"linkUp"`
	Device          string `json:"device"`
	Sent            uint64 `json:"sent"`
	Failed          uint64 `json:"failed"`
	LastLine        string `json:"lastLine"`
	RunningScenario string `json:"runningScenario"`
	RunningScript   string `json:"runningScript"`
}

// NewState creates a new State instance.
func NewState() *State {
	return &State{}
}

// Clone returns a snapshot of the current state for safe reading.
func (s *State) Clone() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		LinkUp:          s.LinkUp,
		Device:          s.Device,
		Sent:            s.Sent,
		Failed:          s.Failed,
		LastLine:        s.LastLine,
		RunningScenario: s.RunningScenario,
		RunningScript:   s.RunningScript,
	}
}

// SetLink updates connection state.
func (s *State) SetLink(up bool, device string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LinkUp = up
	s.Device = device
}

// RecordSent counts a successfully written line.
func (s *State) RecordSent(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sent++
	s.LastLine = line
}

// RecordFailed counts a command that did not reach the link.
func (s *State) RecordFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failed++
}

// TryStartScenario marks name as running unless another scenario already is.
func (s *State) TryStartScenario(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RunningScenario != "" {
		return false
	}
	s.RunningScenario = name
	return true
}

// FinishScenario clears the running scenario.
func (s *State) FinishScenario() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RunningScenario = ""
}

// SetRunningScript updates the running Lua script name.
func (s *State) SetRunningScript(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RunningScript = name
}
