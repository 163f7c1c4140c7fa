package plugins

// State tracks where a plugin sits in its lifecycle. Exactly one value is
// held per registered plugin at any time.
type State int

const (
	// StateRegistered means the plugin is known but not initialized.
	StateRegistered State = iota
	// StateInitialized means Initialize succeeded.
	StateInitialized
	// StateActive means the plugin is running.
	StateActive
	// StateInactive means the plugin was deactivated and may be activated
	// again.
	StateInactive
	// StateError means a lifecycle callback failed. No operation exits this
	// state; the plugin stays inoperable until re-registered.
	StateError
)

func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateInitialized:
		return "initialized"
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText lets states render as their names in JSON responses.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
