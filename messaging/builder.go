package messaging

import (
	"maps"
	"time"
)

type MessageBuilder struct {
	message *Message
}

func NewMessage(kind Kind, payload any) *MessageBuilder {
	return &MessageBuilder{
		message: &Message{
			ID:        generateID(),
			Kind:      kind,
			Payload:   payload,
			Timestamp: time.Now(),
		},
	}
}

func NewCommand(target string, command Command) *MessageBuilder {
	return NewMessage(KindCommand, CommandPayload{Command: command}).Target(target)
}

func NewTransition(unitID string, previous, current ActualState) *MessageBuilder {
	return NewMessage(KindTransition, Transition{
		UnitID:   unitID,
		Previous: previous,
		Current:  current,
	})
}

func NewDependencies(unitID string, states map[string]ActualState) *MessageBuilder {
	return NewMessage(KindDependencies, Dependencies{
		UnitID: unitID,
		States: maps.Clone(states),
	})
}

func NewUnitAnnouncement(unitID string) *MessageBuilder {
	return NewMessage(KindNewUnit, NewUnit{UnitID: unitID})
}

// NewReportStateRequest targets a single unit, or every unit when target
// is empty.
func NewReportStateRequest(target string) *MessageBuilder {
	return NewMessage(KindReportState, ReportStateRequest{}).Target(target)
}

// NewReportDependenciesRequest targets a single unit, or every unit when
// target is empty.
func NewReportDependenciesRequest(target string) *MessageBuilder {
	return NewMessage(KindReportDependencies, ReportDependenciesRequest{}).Target(target)
}

func NewDesiredStateChanged(unitID string, previous, current DesiredState) *MessageBuilder {
	return NewMessage(KindDesiredState, DesiredStateChanged{
		UnitID:   unitID,
		Previous: previous,
		Current:  current,
	})
}

func (mb *MessageBuilder) Target(target string) *MessageBuilder {
	mb.message.Target = target
	return mb
}

// Comment annotates a transition message. It has no effect on other kinds.
func (mb *MessageBuilder) Comment(comment string) *MessageBuilder {
	if t, ok := mb.message.Payload.(Transition); ok {
		t.Comment = comment
		mb.message.Payload = t
	}
	return mb
}

func (mb *MessageBuilder) Build() *Message {
	return mb.message
}
