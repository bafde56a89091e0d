package job

import (
	"strings"
	"testing"
)

func TestMachine_HappyPath(t *testing.T) {
	m := NewMachine()
	if m.State() != StateInit {
		t.Fatalf("expected initial state %s, got %s", StateInit, m.State())
	}
	if m.Segment() != -1 {
		t.Fatalf("expected segment -1 before transcribing, got %d", m.Segment())
	}

	steps := []struct {
		to      State
		segment int
	}{
		{StateSegmenting, -1},
		{StateTranscribing, 0},
		{StateTranscribing, 1},
		{StateTranscribing, 2},
		{StateCleanup, -1},
		{StateDone, -1},
	}
	for _, step := range steps {
		var err error
		if step.to == StateTranscribing {
			err = m.Transcribing(step.segment)
		} else {
			err = m.To(step.to)
		}
		if err != nil {
			t.Fatalf("transition to %s failed: %v", step.to, err)
		}
		if m.State() != step.to {
			t.Fatalf("expected state %s, got %s", step.to, m.State())
		}
		if m.Segment() != step.segment {
			t.Fatalf("expected segment %d in state %s, got %d", step.segment, step.to, m.Segment())
		}
	}

	if !m.Terminal() {
		t.Fatal("expected done state to be terminal")
	}
}

func TestMachine_RejectsIllegalTransitions(t *testing.T) {
	m := NewMachine()
	if err := m.To(StateCleanup); err == nil {
		t.Fatal("expected error for init -> cleanup")
	}
	if err := m.To(StateDone); err == nil {
		t.Fatal("expected error for init -> done")
	}
	if m.State() != StateInit {
		t.Fatalf("expected state unchanged after rejected transition, got %s", m.State())
	}
}

func TestMachine_TranscribingRequiresIndex(t *testing.T) {
	m := NewMachine()
	if err := m.To(StateSegmenting); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if err := m.To(StateTranscribing); err == nil {
		t.Fatal("expected error when entering transcribing without a segment index")
	}
}

func TestMachine_SegmentOrdering(t *testing.T) {
	m := NewMachine()
	if err := m.To(StateSegmenting); err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	if err := m.Transcribing(1); err == nil {
		t.Fatal("expected error when starting at segment 1")
	}
	if err := m.Transcribing(0); err != nil {
		t.Fatalf("transcribing(0) failed: %v", err)
	}
	if err := m.Transcribing(0); err == nil {
		t.Fatal("expected error when repeating segment 0")
	}
	if err := m.Transcribing(2); err == nil {
		t.Fatal("expected error when skipping to segment 2")
	}
	if err := m.Transcribing(1); err != nil {
		t.Fatalf("transcribing(1) failed: %v", err)
	}

	err := m.Transcribing(3)
	if err == nil {
		t.Fatal("expected error when skipping segment 2")
	}
	if !strings.Contains(err.Error(), "expected 2") {
		t.Fatalf("expected error to name the expected index, got %q", err)
	}
}

func TestMachine_AbortReachableFromWorkingStates(t *testing.T) {
	enter := map[State]func(*Machine){
		StateInit:       func(m *Machine) {},
		StateSegmenting: func(m *Machine) { _ = m.To(StateSegmenting) },
		StateTranscribing: func(m *Machine) {
			_ = m.To(StateSegmenting)
			_ = m.Transcribing(0)
		},
		StateCleanup: func(m *Machine) {
			_ = m.To(StateSegmenting)
			_ = m.To(StateCleanup)
		},
	}
	for state, setup := range enter {
		m := NewMachine()
		setup(m)
		if m.State() != state {
			t.Fatalf("setup for %s left machine in %s", state, m.State())
		}
		if err := m.To(StateAborted); err != nil {
			t.Fatalf("expected abort from %s to succeed, got %v", state, err)
		}
		if !m.Terminal() {
			t.Fatalf("expected aborted to be terminal from %s", state)
		}
	}
}

func TestMachine_TerminalStatesAreFinal(t *testing.T) {
	m := NewMachine()
	_ = m.To(StateAborted)
	if err := m.To(StateSegmenting); err == nil {
		t.Fatal("expected error leaving aborted state")
	}
	if err := m.Transcribing(0); err == nil {
		t.Fatal("expected error entering transcribing from aborted state")
	}
}

func TestMachine_SegmentResetOutsideTranscribing(t *testing.T) {
	m := NewMachine()
	_ = m.To(StateSegmenting)
	_ = m.Transcribing(0)
	_ = m.Transcribing(1)
	if m.Segment() != 1 {
		t.Fatalf("expected segment 1, got %d", m.Segment())
	}
	if err := m.To(StateCleanup); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if m.Segment() != -1 {
		t.Fatalf("expected segment reset to -1 in cleanup, got %d", m.Segment())
	}
}
