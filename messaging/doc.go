// Package messaging defines the message protocol exchanged between units,
// trackers and external callers over the bus.
//
// The package is data only. It declares the lifecycle enumerations
// (ActualState, DesiredState, Command), the Message envelope, the payload
// kinds it can carry, and a fluent builder for constructing messages.
//
// # Payload Kinds
//
//   - Command: unicast instruction (START, STOP, ENABLE, DISABLE, CLEAR_DESIRED_STATE)
//   - Transition: broadcast record of a unit's previous and current actual state
//   - Dependencies: broadcast map from dependency id to observed state
//   - NewUnit: broadcast announcement of a freshly created unit
//   - ReportStateRequest: unicast or broadcast request to republish state
//   - ReportDependenciesRequest: unicast or broadcast request to republish dependencies
//   - DesiredStateChanged: broadcast record of a desired-state change
//
// # Message Construction
//
//	start := messaging.NewCommand("web", messaging.CommandStart).Build()
//
//	changed := messaging.NewTransition("web", messaging.StateStarting, messaging.StateFailed).
//	    Comment("exit status 1").
//	    Build()
//
//	everyone := messaging.NewReportStateRequest("").Build()
//
// Each message carries a UUIDv7 ID and its creation timestamp. A message
// without a Target is delivered to every subscriber whose filter accepts
// its kind; a targeted message is only processed by the named unit.
package messaging
