package main

import (
	"sync"
	"time"
)

// displayState holds the newest formatted analysis for the overlay client.
// Frames may be analyzed concurrently; publish enforces last-writer-wins by
// capture sequence so a slow older frame can never overwrite a newer result.
type displayState struct {
	mu         sync.Mutex
	nextSeq    uint64
	seq        uint64
	has        bool
	text       string
	doublePing bool
	updatedAt  time.Time
}

// nextFrameSeq reserves a sequence number at capture time.
func (s *displayState) nextFrameSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	return s.nextSeq
}

// publish stores the frame's display string unless a newer frame already
// published. Returns false when the result was discarded as stale.
func (s *displayState) publish(seq uint64, text string, doublePing bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.has && seq <= s.seq {
		return false
	}
	s.seq = seq
	s.has = true
	s.text = text
	s.doublePing = doublePing
	s.updatedAt = time.Now()
	return true
}

func (s *displayState) snapshot() (text string, doublePing bool, updatedAt time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text, s.doublePing, s.updatedAt, s.has
}

var latest displayState
