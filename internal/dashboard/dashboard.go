// Package dashboard composes the analyzer, the simulation controller and the
// report generator into the page-level state machine
// loading → analyzing → results ⇄ simulated.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pavelanni/careercompass/internal/model"
	"github.com/pavelanni/careercompass/internal/report"
	"github.com/pavelanni/careercompass/internal/roadmap"
	"github.com/pavelanni/careercompass/internal/simulation"
)

// Gateway is the completion service as the dashboard uses it.
type Gateway interface {
	Analyze(ctx context.Context, r model.QuizResult) (model.AptitudeAnalysis, error)
	simulation.Simulator
	report.Reporter
}

// ResultStore holds the quiz result between the quiz and the dashboard.
type ResultStore interface {
	Load(userID string) (model.QuizResult, error)
	Remove(userID string) error
}

// ExplorationRecorder persists finished simulations.
type ExplorationRecorder interface {
	AddExploration(e model.Exploration) (string, error)
}

// SignOuter ends an identity's session.
type SignOuter interface {
	SignOut(ctx context.Context, token string) error
}

// Deps are the collaborators shared by every dashboard.
type Deps struct {
	Gateway      Gateway
	Results      ResultStore
	Explorations ExplorationRecorder
	Identity     SignOuter
}

// View is a snapshot of a dashboard for rendering.
type View struct {
	Phase        model.DashboardPhase    `json:"phase"`
	DisplayName  string                  `json:"displayName"`
	Analyzing    bool                    `json:"analyzing"`
	Analysis     *model.AptitudeAnalysis `json:"analysis,omitempty"`
	OtherStreams []string                `json:"otherStreams,omitempty"`
	Stream       string                  `json:"stream,omitempty"`
	Roadmap      *roadmap.Roadmap        `json:"roadmap,omitempty"`
	Simulation   *model.SimulationState  `json:"simulation,omitempty"`
	Report       *model.DetailedReport   `json:"report,omitempty"`
}

// Dashboard is one signed-in student's page state.
type Dashboard struct {
	deps    Deps
	user    model.Identity
	sim     *simulation.Controller
	reports *report.Generator

	mu        sync.Mutex
	phase     model.DashboardPhase
	result    model.QuizResult
	analysis  *model.AptitudeAnalysis
	analyzing bool
	stream    string
	report    *model.DetailedReport
	recorded  bool
	closed    bool
}

// New creates a dashboard in the loading phase for user.
func New(deps Deps, user model.Identity) *Dashboard {
	user.Token = ""
	return &Dashboard{
		deps:    deps,
		user:    user,
		reports: report.NewGenerator(deps.Gateway),
		phase:   model.DashboardLoading,
	}
}

// Open loads the stored quiz result and moves to analyzing. It is a no-op
// once the result is loaded. Without a stored result it returns
// model.ErrNoQuizResult and stays in loading.
func (d *Dashboard) Open(ctx context.Context) (View, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return View{}, model.ErrDashboardClosed
	}
	if d.phase != model.DashboardLoading {
		return d.viewLocked(), nil
	}

	r, err := d.deps.Results.Load(d.user.UserID)
	if err != nil {
		return d.viewLocked(), err
	}
	d.result = r
	d.sim = simulation.New(d.deps.Gateway, r.Answers)
	d.phase = model.DashboardAnalyzing
	return d.viewLocked(), nil
}

// Analyze runs the aptitude analysis. On failure the dashboard stays in
// analyzing and a later call retries. Once results exist it returns them
// without another gateway call.
func (d *Dashboard) Analyze(ctx context.Context) (View, error) {
	d.mu.Lock()
	switch {
	case d.closed:
		d.mu.Unlock()
		return View{}, model.ErrDashboardClosed
	case d.phase == model.DashboardLoading:
		d.mu.Unlock()
		return View{}, model.ErrWrongPhase
	case d.phase != model.DashboardAnalyzing:
		v := d.viewLocked()
		d.mu.Unlock()
		return v, nil
	case d.analyzing:
		d.mu.Unlock()
		return View{}, model.ErrCallPending
	}
	d.analyzing = true
	result := d.result
	d.mu.Unlock()

	analysis, err := d.deps.Gateway.Analyze(ctx, result)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.analyzing = false
	if d.closed {
		return View{}, model.ErrDashboardClosed
	}
	if err != nil {
		slog.Warn("analysis failed", "user_id", d.user.UserID, "error", err)
		return d.viewLocked(), err
	}
	d.analysis = &analysis
	d.phase = model.DashboardResults
	slog.Info("analysis complete", "user_id", d.user.UserID, "streams", analysis.Streams)
	return d.viewLocked(), nil
}

// SelectStream switches to stream, resetting the simulation and dropping
// any report. The stream must be recommended or in the roadmap catalogue.
func (d *Dashboard) SelectStream(stream string) (View, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return View{}, model.ErrDashboardClosed
	}
	if d.phase != model.DashboardResults && d.phase != model.DashboardSimulated {
		return d.viewLocked(), model.ErrWrongPhase
	}
	name, ok := d.canonicalStream(stream)
	if !ok {
		return d.viewLocked(), model.ErrUnknownStream
	}

	if err := d.sim.Select(name); err != nil {
		return d.viewLocked(), err
	}
	d.reports.Invalidate()
	d.stream = name
	d.report = nil
	d.recorded = false
	d.phase = model.DashboardResults
	return d.viewLocked(), nil
}

// BeginSimulation requests the first scenario for the selected stream.
func (d *Dashboard) BeginSimulation(ctx context.Context) (View, error) {
	sim, err := d.simulationFor()
	if err != nil {
		return View{}, err
	}
	st, err := sim.Begin(ctx)
	return d.afterSimulation(st, err)
}

// Choose answers the current scenario.
func (d *Dashboard) Choose(ctx context.Context, option string) (View, error) {
	sim, err := d.simulationFor()
	if err != nil {
		return View{}, err
	}
	st, err := sim.Choose(ctx, option)
	return d.afterSimulation(st, err)
}

// SetFeedback records the verdict on the finished simulation. A changed
// verdict drops the cached report. The first verdict of a run is saved as
// an exploration.
func (d *Dashboard) SetFeedback(ctx context.Context, f model.Feedback) (View, error) {
	sim, err := d.simulationFor()
	if err != nil {
		return View{}, err
	}
	before := sim.State().Feedback
	st, err := sim.SetFeedback(f)
	if err != nil {
		return d.View(), err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if before != st.Feedback {
		d.reports.Invalidate()
		d.report = nil
	}
	if !d.recorded {
		d.recorded = true
		d.recordLocked(st)
	}
	return d.viewLocked(), nil
}

// Report generates, or returns the cached, detailed report for the current
// stream and feedback.
func (d *Dashboard) Report(ctx context.Context) (View, error) {
	sim, err := d.simulationFor()
	if err != nil {
		return View{}, err
	}
	st := sim.State()
	if st.Phase != model.PhaseFeedbackReceived {
		return d.View(), model.ErrWrongPhase
	}

	d.mu.Lock()
	answers := slices.Clone(d.result.Answers)
	d.mu.Unlock()

	r, err := d.reports.Generate(ctx, model.ReportRequest{
		Stream:   st.Stream,
		Feedback: st.Feedback,
		Answers:  answers,
	})
	if err != nil {
		if model.IsModelError(err) {
			slog.Warn("report failed", "user_id", d.user.UserID, "stream", st.Stream, "error", err)
		}
		return d.View(), err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if cur := d.sim.State(); cur.Stream == st.Stream && cur.Feedback == st.Feedback {
		d.report = &r
	}
	return d.viewLocked(), nil
}

// LastReport returns the report currently shown and its stream.
func (d *Dashboard) LastReport() (string, model.DetailedReport, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.report == nil {
		return "", model.DetailedReport{}, false
	}
	return d.stream, *d.report, true
}

// Exit removes the stored quiz result and signs the identity out.
func (d *Dashboard) Exit(ctx context.Context, token string) error {
	d.mu.Lock()
	d.closed = true
	if d.sim != nil {
		d.sim.Reset()
	}
	d.mu.Unlock()

	var errs []error
	if err := d.deps.Results.Remove(d.user.UserID); err != nil {
		errs = append(errs, fmt.Errorf("remove quiz result: %w", err))
	}
	if err := d.deps.Identity.SignOut(ctx, token); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// View returns a snapshot of the dashboard.
func (d *Dashboard) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewLocked()
}

// Phase returns the current page phase.
func (d *Dashboard) Phase() model.DashboardPhase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

func (d *Dashboard) simulationFor() (*simulation.Controller, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.closed:
		return nil, model.ErrDashboardClosed
	case d.phase != model.DashboardResults && d.phase != model.DashboardSimulated:
		return nil, model.ErrWrongPhase
	case d.stream == "":
		return nil, model.ErrNoStream
	}
	return d.sim, nil
}

func (d *Dashboard) afterSimulation(st model.SimulationState, err error) (View, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		if model.IsModelError(err) {
			slog.Warn("simulation failed", "user_id", d.user.UserID, "stream", st.Stream, "error", err)
		}
		return d.viewLocked(), err
	}
	if !d.closed && st.Stream == d.stream {
		d.phase = model.DashboardSimulated
	}
	return d.viewLocked(), nil
}

func (d *Dashboard) recordLocked(st model.SimulationState) {
	if d.deps.Explorations == nil {
		return
	}
	_, err := d.deps.Explorations.AddExploration(model.Exploration{
		UserID:     d.user.UserID,
		Stream:     st.Stream,
		Feedback:   st.Feedback,
		Answers:    slices.Clone(d.result.Answers),
		Transcript: st.History,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		slog.Error("failed to record exploration", "user_id", d.user.UserID, "error", err)
	}
}

func (d *Dashboard) canonicalStream(stream string) (string, bool) {
	stream = strings.TrimSpace(stream)
	if stream == "" {
		return "", false
	}
	if d.analysis != nil {
		for _, s := range d.analysis.Streams {
			if strings.EqualFold(s, stream) {
				return s, true
			}
		}
	}
	if r, ok := roadmap.Lookup(stream); ok {
		return r.Stream, true
	}
	return "", false
}

func (d *Dashboard) viewLocked() View {
	v := View{
		Phase:       d.phase,
		DisplayName: d.user.DisplayName,
		Analyzing:   d.analyzing,
	}
	if d.analysis != nil {
		a := model.AptitudeAnalysis{
			Recommendation: d.analysis.Recommendation,
			Streams:        slices.Clone(d.analysis.Streams),
		}
		v.Analysis = &a
		v.OtherStreams = roadmap.Others(a.Streams)
	}
	if d.stream != "" {
		v.Stream = d.stream
		rm := roadmap.For(d.stream)
		v.Roadmap = &rm
		if d.sim != nil {
			st := d.sim.State()
			v.Simulation = &st
		}
	}
	if d.report != nil {
		r := *d.report
		v.Report = &r
	}
	return v
}
