package job

import "fmt"

// State identifies where a job is in its lifecycle.
type State string

const (
	StateInit         State = "init"
	StateSegmenting   State = "segmenting"
	StateTranscribing State = "transcribing"
	StateCleanup      State = "cleanup"
	StateDone         State = "done"
	StateAborted      State = "aborted"
)

// transitions lists the legal successor states. Done and Aborted are
// terminal; Aborted is reachable from every working state.
var transitions = map[State][]State{
	StateInit:         {StateSegmenting, StateAborted},
	StateSegmenting:   {StateTranscribing, StateCleanup, StateAborted},
	StateTranscribing: {StateCleanup, StateAborted},
	StateCleanup:      {StateDone, StateAborted},
	StateDone:         {},
	StateAborted:      {},
}

// Machine tracks the lifecycle of one job, carrying the current segment
// index alongside the transcribing state.
type Machine struct {
	state   State
	segment int
}

// NewMachine starts a machine in the Init state.
func NewMachine() *Machine {
	return &Machine{state: StateInit, segment: -1}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Segment returns the index of the segment being transcribed, or -1
// outside the transcribing state.
func (m *Machine) Segment() int {
	return m.segment
}

// To moves the machine to next if the transition is legal. Entering the
// transcribing state goes through Transcribing instead, which carries the
// segment index.
func (m *Machine) To(next State) error {
	if next == StateTranscribing {
		return fmt.Errorf("transcribing requires a segment index")
	}
	for _, s := range transitions[m.state] {
		if s == next {
			m.state = next
			m.segment = -1
			return nil
		}
	}
	return fmt.Errorf("illegal transition %s -> %s", m.state, next)
}

// Transcribing enters the transcribing state for segment i. The first
// segment must be 0 and indices must advance one at a time.
func (m *Machine) Transcribing(i int) error {
	switch m.state {
	case StateSegmenting:
		if i != 0 {
			return fmt.Errorf("transcribing must start at segment 0, got %d", i)
		}
	case StateTranscribing:
		if i != m.segment+1 {
			return fmt.Errorf("segment %d out of order, expected %d", i, m.segment+1)
		}
	default:
		return fmt.Errorf("illegal transition %s -> %s", m.state, StateTranscribing)
	}
	m.state = StateTranscribing
	m.segment = i
	return nil
}

// Terminal reports whether the machine reached a final state.
func (m *Machine) Terminal() bool {
	return m.state == StateDone || m.state == StateAborted
}
