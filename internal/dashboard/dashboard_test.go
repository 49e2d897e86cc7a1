package dashboard

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pavelanni/careercompass/internal/identity"
	"github.com/pavelanni/careercompass/internal/model"
	"github.com/pavelanni/careercompass/internal/store"

	"github.com/stretchr/testify/require"
)

var scenarioA = model.QuizResult{
	Answers:   []string{"Sand", "$0.05", "2", "Sunday", "16", "Counter-clockwise", "Calm", "9"},
	TimeTaken: 120,
}

// fakeGateway follows the real gateway's contract: 2-3 streams, 2-3
// options, final once the history holds two model turns.
type fakeGateway struct {
	mu         sync.Mutex
	analyzeErr error
	analyzes   int
	simulates  int
	reports    int
	lastReport model.ReportRequest
}

func (g *fakeGateway) Analyze(_ context.Context, r model.QuizResult) (model.AptitudeAnalysis, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.analyzes++
	if g.analyzeErr != nil {
		return model.AptitudeAnalysis{}, g.analyzeErr
	}
	return model.AptitudeAnalysis{
		Recommendation: fmt.Sprintf("You answered %d questions in %ds.", len(r.Answers), r.TimeTaken),
		Streams:        []string{"Software Engineering", "Data Science"},
	}, nil
}

func (g *fakeGateway) Simulate(_ context.Context, req model.SimulationRequest) (model.ScenarioTurn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.simulates++
	if model.ModelTurns(req.History) >= 2 {
		return model.ScenarioTurn{Scenario: "Your day wraps up.", IsFinal: true, FeedbackPrompt: "Would you enjoy this?"}, nil
	}
	return model.ScenarioTurn{
		Scenario: "A bug report arrives.",
		Options:  []string{"Fix it now", "Triage first", "Ask for help"},
	}, nil
}

func (g *fakeGateway) Report(_ context.Context, req model.ReportRequest) (model.DetailedReport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reports++
	g.lastReport = req
	return model.DetailedReport{
		Strengths:    "Logical thinking",
		Suitability:  "Good fit for " + req.Stream,
		JobProspects: []string{"Engineer"},
		AptitudeScores: []model.AptitudeScore{
			{Name: model.AptitudeLogical, Score: 90},
			{Name: model.AptitudeNumerical, Score: 80},
			{Name: model.AptitudeSpatial, Score: 70},
			{Name: model.AptitudeVerbal, Score: 60},
		},
	}, nil
}

type fixture struct {
	gw       *fakeGateway
	store    *store.Store
	results  *store.QuizResults
	provider *identity.Provider
	registry *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	f := &fixture{
		gw:       &fakeGateway{},
		store:    s,
		results:  store.NewQuizResults(s, time.Hour),
		provider: identity.New(s, 0),
	}
	f.registry = NewRegistry(Deps{
		Gateway:      f.gw,
		Results:      f.results,
		Explorations: s,
		Identity:     f.provider,
	})
	t.Cleanup(f.registry.Watch(f.provider))
	return f
}

func (f *fixture) signIn(t *testing.T, withResult bool) (model.Identity, *Dashboard) {
	t.Helper()
	id, err := f.provider.SignIn(context.Background(), "Asha")
	require.NoError(t, err)
	if withResult {
		require.NoError(t, f.results.Save(id.UserID, scenarioA))
	}
	return id, f.registry.Get(id)
}

func TestEndToEndScenarioA(t *testing.T) {
	f := newFixture(t)
	_, d := f.signIn(t, true)
	ctx := context.Background()

	v, err := d.Open(ctx)
	require.NoError(t, err)
	require.Equal(t, model.DashboardAnalyzing, v.Phase)

	v, err = d.Analyze(ctx)
	require.NoError(t, err)
	require.Equal(t, model.DashboardResults, v.Phase)
	require.NotNil(t, v.Analysis)
	require.GreaterOrEqual(t, len(v.Analysis.Streams), 2)
	require.LessOrEqual(t, len(v.Analysis.Streams), 3)
	require.NotContains(t, v.OtherStreams, "Software Engineering")

	v, err = d.SelectStream(v.Analysis.Streams[0])
	require.NoError(t, err)
	require.Equal(t, "Software Engineering", v.Stream)
	require.NotNil(t, v.Roadmap)
	require.Equal(t, model.PhaseIdle, v.Simulation.Phase)

	v, err = d.BeginSimulation(ctx)
	require.NoError(t, err)
	require.Equal(t, model.DashboardSimulated, v.Phase)
	require.False(t, v.Simulation.IsFinal)
	require.GreaterOrEqual(t, len(v.Simulation.LastOptions), 2)
	require.LessOrEqual(t, len(v.Simulation.LastOptions), 3)

	// A second Analyze does not call the gateway again.
	_, err = d.Analyze(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, f.gw.analyzes)
}

func TestAnalysisFailureStaysAnalyzing(t *testing.T) {
	f := newFixture(t)
	f.gw.analyzeErr = &model.ModelError{Op: "analyze", Kind: model.MissingCredential}
	_, d := f.signIn(t, true)
	ctx := context.Background()

	_, err := d.Open(ctx)
	require.NoError(t, err)

	v, err := d.Analyze(ctx)
	require.Error(t, err)
	require.True(t, model.IsModelError(err))
	require.Equal(t, model.DashboardAnalyzing, v.Phase)
	require.Nil(t, v.Analysis)
	require.Equal(t, model.DashboardAnalyzing, d.Phase())

	f.gw.mu.Lock()
	f.gw.analyzeErr = nil
	f.gw.mu.Unlock()

	v, err = d.Analyze(ctx)
	require.NoError(t, err)
	require.Equal(t, model.DashboardResults, v.Phase)
}

func TestOpenWithoutQuizResult(t *testing.T) {
	f := newFixture(t)
	_, d := f.signIn(t, false)

	v, err := d.Open(context.Background())
	require.ErrorIs(t, err, model.ErrNoQuizResult)
	require.Equal(t, model.DashboardLoading, v.Phase)

	_, err = d.Analyze(context.Background())
	require.ErrorIs(t, err, model.ErrWrongPhase)
}

func openToResults(t *testing.T, d *Dashboard) {
	t.Helper()
	ctx := context.Background()
	_, err := d.Open(ctx)
	require.NoError(t, err)
	_, err = d.Analyze(ctx)
	require.NoError(t, err)
}

func TestSelectStream(t *testing.T) {
	f := newFixture(t)
	_, d := f.signIn(t, true)
	openToResults(t, d)

	t.Run("unknown stream", func(t *testing.T) {
		_, err := d.SelectStream("Astronaut")
		require.ErrorIs(t, err, model.ErrUnknownStream)
	})

	t.Run("catalogue stream, any case", func(t *testing.T) {
		v, err := d.SelectStream("doctor")
		require.NoError(t, err)
		require.Equal(t, "Doctor", v.Stream)
	})

	t.Run("begin needs a stream", func(t *testing.T) {
		_, d2 := f.signIn(t, true)
		openToResults(t, d2)
		_, err := d2.BeginSimulation(context.Background())
		require.ErrorIs(t, err, model.ErrNoStream)
	})
}

func runToFinal(t *testing.T, d *Dashboard) View {
	t.Helper()
	ctx := context.Background()
	v, err := d.BeginSimulation(ctx)
	require.NoError(t, err)
	for !v.Simulation.IsFinal {
		v, err = d.Choose(ctx, v.Simulation.LastOptions[0])
		require.NoError(t, err)
	}
	return v
}

func TestSimulationAndReport(t *testing.T) {
	f := newFixture(t)
	_, d := f.signIn(t, true)
	openToResults(t, d)
	ctx := context.Background()

	_, err := d.SelectStream("Software Engineering")
	require.NoError(t, err)

	v := runToFinal(t, d)
	require.Equal(t, model.PhaseFinalAwaitingFeedback, v.Simulation.Phase)
	require.Empty(t, v.Simulation.LastOptions)
	require.NotEmpty(t, v.Simulation.FeedbackPrompt)

	_, err = d.Report(ctx)
	require.ErrorIs(t, err, model.ErrWrongPhase)

	v, err = d.SetFeedback(ctx, model.FeedbackPositive)
	require.NoError(t, err)
	require.Equal(t, model.PhaseFeedbackReceived, v.Simulation.Phase)

	v, err = d.Report(ctx)
	require.NoError(t, err)
	require.NotNil(t, v.Report)
	require.Equal(t, 1, f.gw.reports)
	require.Equal(t, scenarioA.Answers, f.gw.lastReport.Answers)

	_, err = d.Report(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, f.gw.reports, "identical request must be served from cache")

	stream, rep, ok := d.LastReport()
	require.True(t, ok)
	require.Equal(t, "Software Engineering", stream)
	require.Equal(t, "Good fit for Software Engineering", rep.Suitability)

	v, err = d.SetFeedback(ctx, model.FeedbackNegative)
	require.NoError(t, err)
	require.Nil(t, v.Report, "changing feedback drops the report")
	_, err = d.Report(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, f.gw.reports)

	explorations, err := f.store.ListExplorations("")
	require.NoError(t, err)
	require.Len(t, explorations, 1)
	require.Equal(t, model.FeedbackPositive, explorations[0].Feedback)
	require.Len(t, explorations[0].Transcript, 5)

	v, err = d.SelectStream("Data Science")
	require.NoError(t, err)
	require.Equal(t, model.DashboardResults, v.Phase)
	require.Nil(t, v.Report)
	require.Empty(t, v.Simulation.History)
}

func TestExitClearsEverything(t *testing.T) {
	f := newFixture(t)
	id, d := f.signIn(t, true)
	openToResults(t, d)
	require.Equal(t, 1, f.registry.Len())

	require.NoError(t, d.Exit(context.Background(), id.Token))

	_, err := f.results.Load(id.UserID)
	require.ErrorIs(t, err, model.ErrNoQuizResult)

	_, err = f.provider.Resolve(context.Background(), id.Token)
	require.Error(t, err)

	require.Equal(t, 0, f.registry.Len(), "sign-out drops the dashboard")

	_, err = d.SelectStream("Doctor")
	require.ErrorIs(t, err, model.ErrDashboardClosed)

	fresh := f.registry.Get(id)
	require.NotSame(t, d, fresh)
	require.Equal(t, model.DashboardLoading, fresh.Phase())
}

func TestRegistry(t *testing.T) {
	f := newFixture(t)
	id, d := f.signIn(t, false)

	require.Same(t, d, f.registry.Get(id))

	reset := f.registry.Reset(id)
	require.NotSame(t, d, reset)
	require.Same(t, reset, f.registry.Get(id))

	f.registry.Drop(id.UserID)
	require.Equal(t, 0, f.registry.Len())
}
