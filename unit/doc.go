// Package unit implements a supervised unit: a state machine over
// CREATED, STARTING, STARTED, STOPPING, STOPPED, FAILED and SHUTDOWN that
// is driven entirely by messages on a bus.
//
// A unit reacts to START and STOP commands, reconciles its actual state
// with a desired state set by ENABLE, DISABLE and CLEAR_DESIRED_STATE, and
// follows the Transition messages of its dependencies to cascade starts
// and stops. A unit that fails while ENABLED retries after a fixed period.
//
// # Execution
//
// Each unit has one control-plane goroutine that owns all of its state and
// processes events in order: bus messages, dependency changes, finished
// operations, retry expiries and shutdown requests. Start and stop
// operations run on their own goroutines inside an OpenTelemetry span and
// are never cancelled. A command that conflicts with a running operation
// is deferred until that operation settles.
//
// # Usage
//
//	b := bus.New(config.DefaultBusConfig())
//	db, _ := unit.New("db", b, unit.Operations{Start: unit.Succeed, Stop: unit.Succeed})
//	web, _ := unit.New("web", b, unit.Operations{Start: unit.Succeed, Stop: unit.Succeed})
//	web.AddDependency("db")
//
//	b.Publish(messaging.NewCommand("web", messaging.CommandEnable).Build())
package unit
