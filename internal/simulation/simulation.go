// Package simulation drives one stream's "day in the life" dialogue.
//
// A Controller owns a single SimulationState. Gateway calls never run under
// the controller's lock: each call captures the generation counter when it
// is issued and its result is committed only if the generation is still the
// same when it lands. Selecting another stream, resetting, or abandoning the
// call (cancelling its context) bumps the generation.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/pavelanni/careercompass/internal/model"
)

// Simulator produces the next scenario turn. *llm.Client implements it.
type Simulator interface {
	Simulate(ctx context.Context, req model.SimulationRequest) (model.ScenarioTurn, error)
}

type result struct {
	turn model.ScenarioTurn
	err  error
}

// Controller is the simulation state machine for one dashboard.
type Controller struct {
	sim     Simulator
	answers []string

	mu    sync.Mutex
	state model.SimulationState
	gen   uint64
}

// New creates an idle controller with no stream selected. The quiz answers
// are sent with every request as the student's preferences.
func New(sim Simulator, answers []string) *Controller {
	return &Controller{
		sim:     sim,
		answers: slices.Clone(answers),
		state:   model.SimulationState{Phase: model.PhaseIdle},
	}
}

// Select starts over with a new stream. Any in-flight call becomes stale.
func (c *Controller) Select(stream string) error {
	if stream == "" {
		return model.ErrNoStream
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.state = model.SimulationState{Phase: model.PhaseIdle, Stream: stream}
	return nil
}

// Reset drops the stream and the transcript.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.state = model.SimulationState{Phase: model.PhaseIdle}
}

// State returns a snapshot of the current state.
func (c *Controller) State() model.SimulationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshot(c.state)
}

// Pending reports whether a gateway call is in flight.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Pending
}

// Begin requests the first scenario for the selected stream.
func (c *Controller) Begin(ctx context.Context) (model.SimulationState, error) {
	c.mu.Lock()
	switch {
	case c.state.Pending:
		c.mu.Unlock()
		return model.SimulationState{}, model.ErrCallPending
	case c.state.Stream == "":
		c.mu.Unlock()
		return model.SimulationState{}, model.ErrNoStream
	case c.state.Phase != model.PhaseIdle:
		c.mu.Unlock()
		return model.SimulationState{}, model.ErrWrongPhase
	}

	req := model.SimulationRequest{
		Stream:      c.state.Stream,
		Preferences: slices.Clone(c.answers),
	}
	c.state.Phase = model.PhaseAwaitingFirstScenario
	c.state.Pending = true
	gen := c.gen
	c.mu.Unlock()

	turn, err := c.call(ctx, gen, req, model.PhaseIdle)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return snapshot(c.state), staleErr(ctx, err)
	}
	c.state.Pending = false
	if err != nil {
		c.state.Phase = model.PhaseIdle
		return snapshot(c.state), err
	}
	c.state.History = []model.ConversationTurn{{Role: model.RoleModel, Content: turn.Scenario}}
	c.apply(turn)
	return snapshot(c.state), nil
}

// Choose answers the current scenario with one of the offered options.
// The request carries the user turn; both turns are committed only when the
// gateway call succeeds.
func (c *Controller) Choose(ctx context.Context, option string) (model.SimulationState, error) {
	c.mu.Lock()
	switch {
	case c.state.Pending:
		c.mu.Unlock()
		return model.SimulationState{}, model.ErrCallPending
	case c.state.Phase != model.PhaseAwaitingChoice:
		c.mu.Unlock()
		return model.SimulationState{}, model.ErrWrongPhase
	case !slices.Contains(c.state.LastOptions, option):
		c.mu.Unlock()
		return model.SimulationState{}, model.ErrUnknownOption
	}

	history := append(slices.Clone(c.state.History), model.ConversationTurn{Role: model.RoleUser, Content: option})
	req := model.SimulationRequest{
		Stream:       c.state.Stream,
		Preferences:  slices.Clone(c.answers),
		History:      history,
		UserResponse: option,
	}
	c.state.Pending = true
	gen := c.gen
	c.mu.Unlock()

	turn, err := c.call(ctx, gen, req, model.PhaseAwaitingChoice)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return snapshot(c.state), staleErr(ctx, err)
	}
	c.state.Pending = false
	if err != nil {
		return snapshot(c.state), err
	}
	c.state.History = append(history, model.ConversationTurn{Role: model.RoleModel, Content: turn.Scenario})
	c.apply(turn)
	return snapshot(c.state), nil
}

// SetFeedback records the verdict on the finished simulation. It may be
// changed until a new stream is selected.
func (c *Controller) SetFeedback(f model.Feedback) (model.SimulationState, error) {
	if !f.Valid() {
		return model.SimulationState{}, model.ErrInvalidFeedback
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != model.PhaseFinalAwaitingFeedback && c.state.Phase != model.PhaseFeedbackReceived {
		return snapshot(c.state), model.ErrWrongPhase
	}
	c.state.Feedback = f
	c.state.Phase = model.PhaseFeedbackReceived
	return snapshot(c.state), nil
}

// call runs the gateway request on its own goroutine. If ctx ends first the
// call is abandoned: the generation moves on and the phase goes back to
// restore, so the late result is discarded.
func (c *Controller) call(ctx context.Context, gen uint64, req model.SimulationRequest, restore model.SimulationPhase) (model.ScenarioTurn, error) {
	done := make(chan result, 1)
	go func() {
		turn, err := c.sim.Simulate(ctx, req)
		done <- result{turn: turn, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			r.err = checkTurn(r.turn)
		}
		return r.turn, r.err
	case <-ctx.Done():
		c.mu.Lock()
		if c.gen == gen {
			c.gen++
			c.state.Pending = false
			c.state.Phase = restore
		}
		c.mu.Unlock()
		slog.Info("simulation call abandoned", "stream", req.Stream, "error", ctx.Err())
		return model.ScenarioTurn{}, fmt.Errorf("simulation call abandoned: %w", ctx.Err())
	}
}

// apply moves to the phase the turn implies. Callers hold mu.
func (c *Controller) apply(turn model.ScenarioTurn) {
	c.state.LastScenario = turn.Scenario
	c.state.IsFinal = turn.IsFinal
	if turn.IsFinal {
		c.state.Phase = model.PhaseFinalAwaitingFeedback
		c.state.LastOptions = nil
		c.state.FeedbackPrompt = turn.FeedbackPrompt
		return
	}
	c.state.Phase = model.PhaseAwaitingChoice
	c.state.LastOptions = slices.Clone(turn.Options)
	c.state.FeedbackPrompt = ""
}

// checkTurn rejects turns that would break the options/feedback-prompt
// pairing, whatever Simulator produced them.
func checkTurn(t model.ScenarioTurn) error {
	var reason string
	switch {
	case t.IsFinal && t.FeedbackPrompt == "":
		reason = "final turn without feedback prompt"
	case !t.IsFinal && len(t.Options) == 0:
		reason = "non-final turn without options"
	default:
		return nil
	}
	return &model.ModelError{Op: "simulate", Kind: model.MalformedOutput, Err: errors.New(reason)}
}

// staleErr explains why a finished call was not applied: the caller gave
// up on it, or the state moved on underneath it.
func staleErr(ctx context.Context, err error) error {
	if ctx.Err() != nil && err != nil {
		return err
	}
	return model.ErrStaleResponse
}

func snapshot(s model.SimulationState) model.SimulationState {
	s.History = slices.Clone(s.History)
	s.LastOptions = slices.Clone(s.LastOptions)
	return s
}
