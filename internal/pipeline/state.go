package pipeline

import (
	"time"

	"video-ingest/internal/logging"
)

// State is a position in the per-request lifecycle.
type State string

const (
	StateReceived    State = "received"
	StateValidating  State = "validating"
	StateExtracting  State = "extracting"
	StateTranscoding State = "transcoding"
	StateStoring     State = "storing"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// stateRank orders the forward path. Failed sits outside the ranking;
// it is reachable from any non-terminal state.
var stateRank = map[State]int{
	StateReceived:    0,
	StateValidating:  1,
	StateExtracting:  2,
	StateTranscoding: 3,
	StateStoring:     4,
	StateCompleted:   5,
}

// ValidTransition reports whether moving from one state to another is
// legal: one step forward along the pipeline, or into Failed from any
// non-terminal state.
func ValidTransition(from, to State) bool {
	if to == StateFailed {
		return from != StateCompleted && from != StateFailed
	}
	fromRank, ok := stateRank[from]
	if !ok {
		return false
	}
	toRank, ok := stateRank[to]
	if !ok {
		return false
	}
	return toRank == fromRank+1
}

// job tracks one upload through the state machine.
type job struct {
	name  string
	state State
	start time.Time
}

func newJob(name string) *job {
	if name == "" {
		name = "upload"
	}
	return &job{name: name, state: StateReceived, start: time.Now()}
}

func (j *job) advance(to State) {
	if !ValidTransition(j.state, to) {
		logging.Warn("Job %q: illegal transition %s -> %s", j.name, j.state, to)
	}
	logging.Debug("Job %q: %s -> %s", j.name, j.state, to)
	j.state = to
}

func (j *job) fail(err error) {
	if !ValidTransition(j.state, StateFailed) {
		logging.Warn("Job %q: illegal transition %s -> %s", j.name, j.state, StateFailed)
	}
	logging.Debug("Job %q: %s -> %s after %v: %v", j.name, j.state, StateFailed, time.Since(j.start).Round(time.Millisecond), err)
	j.state = StateFailed
}

func (j *job) complete() {
	j.advance(StateCompleted)
	logging.Debug("Job %q: completed in %v", j.name, time.Since(j.start).Round(time.Millisecond))
}
