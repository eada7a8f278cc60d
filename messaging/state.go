package messaging

import (
	"fmt"
	"strings"
)

// ActualState is the observed lifecycle stage of a unit.
//
// The zero value is StateUnknown, which is what a unit records for a
// dependency that has not reported yet.
type ActualState int

const (
	StateUnknown ActualState = iota
	StateCreated
	StateStarting
	StateStarted
	StateStopping
	StateStopped
	StateFailed
	StateShutdown
)

var actualStateNames = map[ActualState]string{
	StateUnknown:  "UNKNOWN",
	StateCreated:  "CREATED",
	StateStarting: "STARTING",
	StateStarted:  "STARTED",
	StateStopping: "STOPPING",
	StateStopped:  "STOPPED",
	StateFailed:   "FAILED",
	StateShutdown: "SHUTDOWN",
}

func (s ActualState) String() string {
	if name, ok := actualStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ActualState(%d)", int(s))
}

// IsTerminal reports whether no further transitions are accepted.
func (s ActualState) IsTerminal() bool {
	return s == StateShutdown
}

// IsStartable reports whether a START command begins a new start attempt.
func (s ActualState) IsStartable() bool {
	return s == StateCreated || s == StateStopped || s == StateFailed
}

func (s ActualState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ActualState) UnmarshalText(text []byte) error {
	parsed, err := ParseActualState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseActualState resolves a case-insensitive state name.
func ParseActualState(name string) (ActualState, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for state, stateName := range actualStateNames {
		if stateName == upper {
			return state, nil
		}
	}
	return StateUnknown, fmt.Errorf("unknown actual state: %q", name)
}

// DesiredState is the externally declared intent for a unit.
//
// Enabled units are driven toward STARTED and retried after failure.
// Disabled units are driven toward STOPPED and never started on their own.
// Unset units only act on explicit commands.
type DesiredState int

const (
	DesiredUnset DesiredState = iota
	DesiredEnabled
	DesiredDisabled
)

var desiredStateNames = map[DesiredState]string{
	DesiredUnset:    "UNSET",
	DesiredEnabled:  "ENABLED",
	DesiredDisabled: "DISABLED",
}

func (d DesiredState) String() string {
	if name, ok := desiredStateNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DesiredState(%d)", int(d))
}

func (d DesiredState) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *DesiredState) UnmarshalText(text []byte) error {
	parsed, err := ParseDesiredState(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDesiredState resolves a case-insensitive desired state name. The
// empty string parses as DesiredUnset.
func ParseDesiredState(name string) (DesiredState, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if upper == "" {
		return DesiredUnset, nil
	}
	for desired, desiredName := range desiredStateNames {
		if desiredName == upper {
			return desired, nil
		}
	}
	return DesiredUnset, fmt.Errorf("unknown desired state: %q", name)
}

// Command is an instruction addressed to exactly one unit.
//
// The type is open so that values produced by a mismatched protocol version
// can still reach a unit and be rejected there.
type Command int

const (
	CommandStart Command = iota + 1
	CommandStop
	CommandEnable
	CommandDisable
	CommandClearDesiredState
)

var commandNames = map[Command]string{
	CommandStart:             "START",
	CommandStop:              "STOP",
	CommandEnable:            "ENABLE",
	CommandDisable:           "DISABLE",
	CommandClearDesiredState: "CLEAR_DESIRED_STATE",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// IsValid reports whether c is one of the known commands.
func (c Command) IsValid() bool {
	_, ok := commandNames[c]
	return ok
}

func (c Command) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Command) UnmarshalText(text []byte) error {
	parsed, err := ParseCommand(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCommand resolves a case-insensitive command name. Both
// "clear_desired_state" and "clear-desired-state" are accepted.
func ParseCommand(name string) (Command, error) {
	upper := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(name)), "-", "_")
	for cmd, cmdName := range commandNames {
		if cmdName == upper {
			return cmd, nil
		}
	}
	return 0, fmt.Errorf("unknown command: %q", name)
}
