package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/supervisor/dot"
	"github.com/tailored-agentic-units/supervisor/messaging"
	"github.com/tailored-agentic-units/supervisor/supervisor"
	"github.com/tailored-agentic-units/supervisor/tracker"
)

var (
	dotOutput string
	dotSettle time.Duration
)

func newDotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dot",
		Short: "Render the unit dependency graph in Graphviz DOT format",
		Long: `Render the unit dependency graph in Graphviz DOT format.

With --settle the configured units are started and the graph is rendered
once they come to rest or the settle period ends, then stopped again.
Without it the graph shows every unit in CREATED.`,
		Args: cobra.NoArgs,
		RunE: renderDot,
	}
	cmd.Flags().StringVarP(&dotOutput, "output", "o", "", "Write the graph to this file instead of stdout")
	cmd.Flags().DurationVar(&dotSettle, "settle", 0, "Run the units for up to this long before rendering")
	return cmd
}

func renderDot(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	state := declaredState(cfg)
	if dotSettle > 0 {
		if state, err = settledState(cmd.Context(), cfg); err != nil {
			return err
		}
	}

	if dotOutput != "" {
		return dot.WriteFile(dotOutput, state)
	}
	return dot.Write(cmd.OutOrStdout(), state)
}

// declaredState describes cfg as it would look before Start.
func declaredState(cfg *supervisor.Config) tracker.SystemState {
	views := make([]tracker.UnitView, 0, len(cfg.Units))
	for _, spec := range cfg.Units {
		actual := messaging.StateCreated
		desired := spec.DesiredState()
		views = append(views, tracker.UnitView{
			ID:           spec.ID,
			Actual:       &actual,
			Desired:      &desired,
			Dependencies: spec.DependsOn,
		})
	}
	return tracker.NewSystemState(views...)
}

// settledState runs cfg until no unit is starting or stopping, or until
// the settle period ends, and returns the last snapshot.
func settledState(ctx context.Context, cfg *supervisor.Config) (tracker.SystemState, error) {
	sup, err := supervisor.New(*cfg, supervisor.WithLogger(newLogger()))
	if err != nil {
		return tracker.SystemState{}, err
	}
	defer func() { _ = stopSupervisor(sup) }()

	if err := sup.Start(ctx); err != nil {
		return tracker.SystemState{}, err
	}

	settleCtx, cancel := context.WithTimeout(ctx, dotSettle)
	defer cancel()

	state, err := sup.Tracker().Wait(settleCtx, func(s tracker.SystemState) bool {
		return s.Len() == len(cfg.Units) && settled(cfg, s)
	})
	if err != nil {
		if ctx.Err() != nil {
			return tracker.SystemState{}, ctx.Err()
		}
		return sup.Snapshot(), nil
	}
	return state, nil
}

// settled holds when no unit is mid-operation and every unit declared
// ENABLED has moved past CREATED.
func settled(cfg *supervisor.Config, s tracker.SystemState) bool {
	for _, v := range s.Units() {
		spec, _ := cfg.Unit(v.ID)
		switch v.ActualState() {
		case messaging.StateStarting, messaging.StateStopping:
			return false
		case messaging.StateUnknown, messaging.StateCreated:
			if spec.DesiredState() == messaging.DesiredEnabled {
				return false
			}
		}
	}
	return true
}
