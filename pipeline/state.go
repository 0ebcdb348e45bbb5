package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// RunState is the lifecycle stage of one detection run.
type RunState int

const (
	Initializing RunState = iota
	Streaming
	Finalizing
	ReportGenerated
	Done
)

func (s RunState) String() string {
	switch s {
	case Initializing:
		return "INITIALIZING"
	case Streaming:
		return "STREAMING"
	case Finalizing:
		return "FINALIZING"
	case ReportGenerated:
		return "REPORT_GENERATED"
	case Done:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// ErrInvalidTransition is returned for a state change the lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid run state transition")

// allowed lists the legal successors of each state. Finalizing may skip
// ReportGenerated when there was nothing to report.
var allowed = map[RunState][]RunState{
	Initializing:    {Streaming},
	Streaming:       {Finalizing},
	Finalizing:      {ReportGenerated, Done},
	ReportGenerated: {Done},
}

// StateManager tracks the run state and notifies a callback on every change.
type StateManager struct {
	state          RunState
	enteredAt      time.Time
	mutex          sync.RWMutex
	onStateChanged func(oldState, newState RunState)
}

// NewStateManager creates a manager in the Initializing state.
func NewStateManager() *StateManager {
	return &StateManager{
		state:     Initializing,
		enteredAt: time.Now(),
	}
}

// SetStateChangeCallback sets the callback for state changes
func (sm *StateManager) SetStateChangeCallback(callback func(oldState, newState RunState)) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	sm.onStateChanged = callback
}

// GetState returns the current state
func (sm *StateManager) GetState() RunState {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.state
}

// Transition moves to newState if the lifecycle allows it.
func (sm *StateManager) Transition(newState RunState) error {
	sm.mutex.Lock()
	oldState := sm.state
	if !canTransition(oldState, newState) {
		sm.mutex.Unlock()
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", oldState, newState)
	}
	now := time.Now()
	spent := now.Sub(sm.enteredAt)
	sm.state = newState
	sm.enteredAt = now
	callback := sm.onStateChanged
	sm.mutex.Unlock()

	debugMsg("RUN_STATE", fmt.Sprintf("%s -> %s after %v", oldState, newState, spent.Round(time.Millisecond)))
	if callback != nil {
		callback(oldState, newState)
	}
	return nil
}

func canTransition(from, to RunState) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}
