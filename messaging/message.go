package messaging

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the payload carried by a Message.
type Kind string

const (
	KindCommand            Kind = "command"
	KindTransition         Kind = "transition"
	KindDependencies       Kind = "dependencies"
	KindNewUnit            Kind = "new_unit"
	KindReportState        Kind = "report_state"
	KindReportDependencies Kind = "report_dependencies"
	KindDesiredState       Kind = "desired_state"
)

// Message is the envelope published on the bus. A message without a Target
// is a broadcast; a message with a Target is meant for that unit only.
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Target    string    `json:"target,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CommandPayload carries a Command to the unit named by the message Target.
type CommandPayload struct {
	Command Command `json:"command"`
}

// Transition records a unit moving from one actual state to another. A
// Transition with Previous == Current is a report, not a change.
type Transition struct {
	UnitID   string      `json:"unit_id"`
	Previous ActualState `json:"previous"`
	Current  ActualState `json:"current"`
	Comment  string      `json:"comment,omitempty"`
}

func (t Transition) String() string {
	if t.Comment == "" {
		return fmt.Sprintf("%s: %s -> %s", t.UnitID, t.Previous, t.Current)
	}
	return fmt.Sprintf("%s: %s -> %s (%s)", t.UnitID, t.Previous, t.Current, t.Comment)
}

// Dependencies reports a unit's registered dependencies and the last state
// it observed for each of them.
type Dependencies struct {
	UnitID string                 `json:"unit_id"`
	States map[string]ActualState `json:"states"`
}

// NewUnit announces a freshly created unit.
type NewUnit struct {
	UnitID string `json:"unit_id"`
}

// ReportStateRequest asks the target unit, or every unit when broadcast, to
// republish its current state.
type ReportStateRequest struct{}

// ReportDependenciesRequest asks the target unit, or every unit when
// broadcast, to republish its dependency set.
type ReportDependenciesRequest struct{}

// DesiredStateChanged records a change of a unit's desired state. It is
// also sent with Previous == Current in answer to a ReportStateRequest.
type DesiredStateChanged struct {
	UnitID   string       `json:"unit_id"`
	Previous DesiredState `json:"previous"`
	Current  DesiredState `json:"current"`
}

// IsBroadcast reports whether the message has no target.
func (msg *Message) IsBroadcast() bool {
	return msg.Target == ""
}

// AddressedTo reports whether a unit with the given id should process the
// message: broadcasts match every unit.
func (msg *Message) AddressedTo(unitID string) bool {
	return msg.IsBroadcast() || msg.Target == unitID
}

func (msg *Message) Command() (Command, bool) {
	payload, ok := msg.Payload.(CommandPayload)
	return payload.Command, ok && msg.Kind == KindCommand
}

func (msg *Message) Transition() (Transition, bool) {
	payload, ok := msg.Payload.(Transition)
	return payload, ok && msg.Kind == KindTransition
}

func (msg *Message) Dependencies() (Dependencies, bool) {
	payload, ok := msg.Payload.(Dependencies)
	return payload, ok && msg.Kind == KindDependencies
}

func (msg *Message) NewUnit() (NewUnit, bool) {
	payload, ok := msg.Payload.(NewUnit)
	return payload, ok && msg.Kind == KindNewUnit
}

func (msg *Message) DesiredStateChanged() (DesiredStateChanged, bool) {
	payload, ok := msg.Payload.(DesiredStateChanged)
	return payload, ok && msg.Kind == KindDesiredState
}

func (msg *Message) String() string {
	return fmt.Sprintf(
		"Message{ID: %s, Kind: %s, Target: %s}",
		msg.ID,
		msg.Kind,
		msg.Target,
	)
}

func generateID() string {
	return uuid.Must(uuid.NewV7()).String()
}
