package server

import (
	"sync"
	"time"
)

// State is shared by the listener and its actors. Every actor loop checks
// Enabled once per iteration.
type State struct {
	mu         sync.RWMutex
	enabled    bool
	guid       uint64
	descriptor Descriptor
	started    time.Time
}

func newState(guid uint64, d Descriptor) *State {
	return &State{
		guid:       guid,
		descriptor: d,
		started:    time.Now(),
	}
}

func (s *State) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

func (s *State) setEnabled(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = v
	if v {
		s.started = time.Now()
	}
}

// GUID does not change after construction.
func (s *State) GUID() uint64 {
	return s.guid
}

func (s *State) Descriptor() Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.descriptor
}

func (s *State) SetDescriptor(d Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descriptor = d
}

// Uptime is the protocol clock: milliseconds since the listener started.
func (s *State) Uptime() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.started).Milliseconds()
}
