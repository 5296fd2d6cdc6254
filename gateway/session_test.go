package gateway

import "testing"

// TestSessionLifecycle tests the Inactive -> Start -> AdvanceSequence ->
// Clear state transitions.
func TestSessionLifecycle(t *testing.T) {
	var s Session
	if !s.Inactive() {
		t.Fatalf("(zero value): got active, wanted inactive")
	}
	if s.SequenceID() != nil {
		t.Fatalf("(zero value SequenceID): got non-nil, wanted nil")
	}

	s.Start("session-abc", 5)
	if s.Inactive() {
		t.Fatalf("(after Start): got inactive, wanted active")
	}
	if s.SessionID() != "session-abc" {
		t.Fatalf("(SessionID): got %q, wanted %q", s.SessionID(), "session-abc")
	}
	if seq := s.SequenceID(); seq == nil || *seq != 5 {
		t.Fatalf("(SequenceID): got %v, wanted 5", seq)
	}

	s.AdvanceSequence(9)
	if seq := s.SequenceID(); seq == nil || *seq != 9 {
		t.Fatalf("(AdvanceSequence): got %v, wanted 9", seq)
	}

	s.Clear()
	if !s.Inactive() {
		t.Fatalf("(after Clear): got active, wanted inactive")
	}
	if s.SequenceID() != nil {
		t.Fatalf("(after Clear SequenceID): got non-nil, wanted nil")
	}
}

// TestSessionAdvanceSequenceNoopWhenInactive tests that AdvanceSequence
// does nothing before a session has been Started.
func TestSessionAdvanceSequenceNoopWhenInactive(t *testing.T) {
	var s Session
	s.AdvanceSequence(42)
	if !s.Inactive() || s.SequenceID() != nil {
		t.Fatalf("(inactive advance): got active state from an inactive session")
	}
}
