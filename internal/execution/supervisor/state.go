package supervisor

// State is the lifecycle state of a supervisor session.
type State int

const (
	// Idle is the state before the first launch.
	Idle State = iota

	// Launching is held while the worker is being spawned.
	Launching

	// AwaitingCheckIn is held until the worker connects back.
	AwaitingCheckIn

	// Ready is held while the worker accepts commands.
	Ready

	// ShuttingDown is held between a shutdown request and the exit
	// of the worker.
	ShuttingDown

	// Terminated is reached when the worker exited, or the session
	// could not be launched.
	Terminated

	// CrashedAtStartup is reached when the worker exited before it
	// checked in, and no retries are left.
	CrashedAtStartup

	// NeverCheckedIn is reached when the worker did not check in
	// before the startup timeout, and no retries are left.
	NeverCheckedIn
)

var stateNames = map[State]string{
	Idle:             "idle",
	Launching:        "launching",
	AwaitingCheckIn:  "awaiting_check_in",
	Ready:            "ready",
	ShuttingDown:     "shutting_down",
	Terminated:       "terminated",
	CrashedAtStartup: "crashed_at_startup",
	NeverCheckedIn:   "never_checked_in",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return "unknown"
}

// Terminal reports whether the session has ended. A new session may
// be started from a terminal state.
func (s State) Terminal() bool {
	switch s {
	case Terminated, CrashedAtStartup, NeverCheckedIn:
		return true
	default:
		return false
	}
}
