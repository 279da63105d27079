package vectorstore

// State is the lifecycle state of the store.
//
//	Empty ──EnsureInitialized──▶ Loading ──▶ Ready
//	                                    └──▶ Degraded (backing store unavailable)
//	Degraded ──successful Rebuild──▶ Ready
type State int32

const (
	// StateEmpty means nothing was loaded yet and no I/O has happened.
	StateEmpty State = iota
	// StateLoading means initialization is in progress.
	StateLoading
	// StateReady means the index reflects disk or the entry table.
	StateReady
	// StateDegraded means the entry table was unavailable; the index is empty.
	StateDegraded
)

var stateNames = [...]string{"empty", "loading", "ready", "degraded"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// States lists every state, for metrics.
func States() []State { return []State{StateEmpty, StateLoading, StateReady, StateDegraded} }
