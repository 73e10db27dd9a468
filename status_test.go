package main

import "testing"

func TestPublishLastWriterWinsByCaptureOrder(t *testing.T) {
	var s displayState
	a := s.nextFrameSeq()
	b := s.nextFrameSeq()
	// newer frame finishes first
	if !s.publish(b, "newer", false) {
		t.Fatalf("newer frame must publish")
	}
	// older frame finishes late and must be discarded
	if s.publish(a, "older", true) {
		t.Fatalf("stale frame must be discarded")
	}
	text, doublePing, _, ok := s.snapshot()
	if !ok || text != "newer" || doublePing {
		t.Fatalf("snapshot shows stale data: %q %v", text, doublePing)
	}
}

func TestSnapshotEmpty(t *testing.T) {
	var s displayState
	if _, _, _, ok := s.snapshot(); ok {
		t.Fatalf("empty state must report not-ok")
	}
}
