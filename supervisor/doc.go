// Package supervisor runs a declared set of units.
//
// A Config names the units, their desired states, their dependencies and
// the commands that start and stop them. New validates the config and
// creates every unit on a private bus with a tracker attached. Start wires
// dependencies and publishes desired states; the units then converge on
// their own. Watch reloads the config file on change and applies new
// desired states. Stop disables every unit and shuts them down once they
// are at rest.
package supervisor
