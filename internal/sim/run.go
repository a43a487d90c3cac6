package sim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/cartpoles/internal/dynamo"
)

// Run drives the simulator for the given number of steps at the configured dt,
// asking ctrl for a voltage each step. A nil controller applies zero volts.
// The controller sees the measured state when measurement noise is configured.
// Run stops at the first non-finite state and reports it as a SimulationError.
func (s *Simulator) Run(ctx context.Context, ctrl dynamo.Controller, steps int) (*Result, error) {
	if steps < 0 {
		return nil, fmt.Errorf("%w: steps must be non-negative, got %d", dynamo.ErrInvalidParameters, steps)
	}

	result := &Result{Metrics: make(map[string]float64)}
	zero := make(dynamo.Control, s.plant.ControlDim())

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			result.Final = s.State()
			return result, ctx.Err()
		default:
		}

		x := s.state
		u := zero
		if ctrl != nil {
			u = ctrl.Compute(s.Measure(x), s.t)
		}
		// Metrics and observers see the voltage the motor actually gets.
		u = s.plant.Saturate(u)

		for _, m := range s.metrics {
			m.Observe(x, u, s.t)
		}
		for _, obs := range s.observers {
			obs.OnStep(x, u, s.t)
		}

		next, _, err := s.Step(s.cfg.Dt, u)
		if err != nil {
			return result, &dynamo.SimulationError{Step: i, Time: s.t, State: x.Clone(), Wrapped: err}
		}
		result.StepsTaken++

		if !next.IsValid() {
			s.logger.Warn("state diverged", slog.Int("step", i), slog.Float64("t", s.t))
			result.Final = next
			return result, &dynamo.SimulationError{Step: i, Time: s.t, State: next, Wrapped: dynamo.ErrInvalidState}
		}
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	result.Final = s.State()
	s.logger.Debug("run finished", slog.Int("steps", result.StepsTaken), slog.Float64("t", s.t))
	return result, nil
}
