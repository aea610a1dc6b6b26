package feed

// State is the lifecycle state of the loaded track.
type State int

const (
	// StateIdle means no feed is mounted.
	StateIdle State = iota
	// StateLoading means speech for the current track is being prepared.
	StateLoading
	// StateReady means the current track is loaded and not playing.
	StateReady
	// StatePlaying means the current track is audible.
	StatePlaying
	// StatePaused means the output clock is suspended mid-track.
	StatePaused
	// StateError means the current track could not be loaded or played;
	// its text is still shown.
	StateError
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// StateMachine guards state transitions.
type StateMachine struct {
	current     State
	transitions map[State][]State
	onEnter     map[State]func()
	onExit      map[State]func()
}

// NewStateMachine creates a state machine in StateIdle.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[State][]State{
			StateIdle:    {StateLoading},
			StateLoading: {StateLoading, StateReady, StateError, StateIdle},
			StateReady:   {StatePlaying, StateLoading, StateError, StateIdle},
			StatePlaying: {StatePaused, StateLoading, StateError, StateIdle},
			StatePaused:  {StatePlaying, StateLoading, StateIdle},
			StateError:   {StateLoading, StateIdle},
		},
		onEnter: make(map[State]func()),
		onExit:  make(map[State]func()),
	}
}

// Can reports whether a transition to the given state is allowed.
func (sm *StateMachine) Can(to State) bool {
	for _, s := range sm.transitions[sm.current] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition attempts to move to the given state.
func (sm *StateMachine) Transition(to State) bool {
	if !sm.Can(to) {
		return false
	}

	if exitFn, ok := sm.onExit[sm.current]; ok && exitFn != nil {
		exitFn()
	}

	sm.current = to

	if enterFn, ok := sm.onEnter[to]; ok && enterFn != nil {
		enterFn()
	}

	return true
}

// Current returns the current state.
func (sm *StateMachine) Current() State {
	return sm.current
}

// OnEnter registers a callback for entering a state.
func (sm *StateMachine) OnEnter(state State, fn func()) {
	sm.onEnter[state] = fn
}

// OnExit registers a callback for exiting a state.
func (sm *StateMachine) OnExit(state State, fn func()) {
	sm.onExit[state] = fn
}
