package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/pavelanni/careercompass/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

type fakeChat struct {
	reply string
	err   error
	reqs  []openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.reply}}},
	}, nil
}

func (f *fakeChat) GetModel(_ context.Context, id string) (openai.Model, error) {
	if f.err != nil {
		return openai.Model{}, f.err
	}
	return openai.Model{ID: id}, nil
}

func newTestClient(t *testing.T, fc *fakeChat) *Client {
	t.Helper()
	c, err := New("", "", "", 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.api = fc
	return c
}

func wantKind(t *testing.T, err error, kind model.ModelErrorKind) {
	t.Helper()
	var me *model.ModelError
	if !errors.As(err, &me) {
		t.Fatalf("error = %v, want *model.ModelError", err)
	}
	if me.Kind != kind {
		t.Errorf("kind = %q, want %q", me.Kind, kind)
	}
}

func TestDisabledClient(t *testing.T) {
	c, err := New("", "", "", 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var ce *model.ConfigurationError
	if !errors.As(c.Configured(), &ce) {
		t.Fatalf("Configured() = %v, want ConfigurationError", c.Configured())
	}
	if c.Model() != DefaultModel {
		t.Errorf("Model() = %q, want %q", c.Model(), DefaultModel)
	}
	if c.FinalTurn() != DefaultFinalTurn {
		t.Errorf("FinalTurn() = %d, want %d", c.FinalTurn(), DefaultFinalTurn)
	}

	_, err = c.Analyze(context.Background(), model.QuizResult{Answers: make([]string, 8)})
	wantKind(t, err, model.MissingCredential)
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr bool
		streams int
	}{
		{"valid", `{"recommendation":"You think in systems.","streams":["Software Engineering","Data Science"]}`, false, 2},
		{"fenced", "```json\n{\"recommendation\":\"ok\",\"streams\":[\"A\",\"B\",\"C\"]}\n```", false, 3},
		{"blank stream dropped", `{"recommendation":"ok","streams":["A"," ","B"]}`, false, 2},
		{"one stream", `{"recommendation":"ok","streams":["A"]}`, true, 0},
		{"four streams", `{"recommendation":"ok","streams":["A","B","C","D"]}`, true, 0},
		{"no recommendation", `{"streams":["A","B"]}`, true, 0},
		{"not json", `I recommend engineering.`, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &fakeChat{reply: tt.reply})
			got, err := c.Analyze(context.Background(), model.QuizResult{Answers: make([]string, 8), TimeTaken: 60})
			if tt.wantErr {
				wantKind(t, err, model.MalformedOutput)
				return
			}
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if len(got.Streams) != tt.streams {
				t.Errorf("streams = %v, want %d entries", got.Streams, tt.streams)
			}
		})
	}
}

func TestAnalyzeRequestShape(t *testing.T) {
	fc := &fakeChat{reply: `{"recommendation":"ok","streams":["A","B"]}`}
	c := newTestClient(t, fc)
	if _, err := c.Analyze(context.Background(), model.QuizResult{Answers: make([]string, 8)}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(fc.reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(fc.reqs))
	}
	req := fc.reqs[0]
	if req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Error("request should use JSON mode")
	}
	if req.Model != DefaultModel {
		t.Errorf("model = %q, want %q", req.Model, DefaultModel)
	}
}

func TestSimulateFinality(t *testing.T) {
	history := func(modelTurns int) []model.ConversationTurn {
		var h []model.ConversationTurn
		for i := 0; i < modelTurns; i++ {
			h = append(h,
				model.ConversationTurn{Role: model.RoleModel, Content: "scenario"},
				model.ConversationTurn{Role: model.RoleUser, Content: "choice"})
		}
		return h
	}

	const options = `{"scenario":"You arrive at the office.","options":["Review code","Plan sprint"],"isFinal":false}`
	const final = `{"scenario":"Day over.","isFinal":true,"feedbackPrompt":"Did you enjoy it?"}`
	const finalNoPrompt = `{"scenario":"Day over.","isFinal":true}`
	const finalWithOptions = `{"scenario":"Day over.","options":["x","y"],"isFinal":false,"feedbackPrompt":"Enjoyed it?"}`

	tests := []struct {
		name       string
		modelTurns int
		reply      string
		wantFinal  bool
		wantErr    bool
	}{
		{"first turn", 0, options, false, false},
		{"second turn", 1, options, false, false},
		{"third turn is final", 2, final, true, false},
		{"final flag normalized", 2, finalWithOptions, true, false},
		{"early final rejected", 0, final, false, true},
		{"final without prompt", 2, finalNoPrompt, false, true},
		{"too few options", 1, `{"scenario":"s","options":["only"]}`, false, true},
		{"empty scenario", 0, `{"scenario":"","options":["a","b"]}`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &fakeChat{reply: tt.reply})
			got, err := c.Simulate(context.Background(), model.SimulationRequest{
				Stream:  "Software Engineering",
				History: history(tt.modelTurns),
			})
			if tt.wantErr {
				wantKind(t, err, model.MalformedOutput)
				var se *SchemaError
				if !errors.As(err, &se) {
					t.Errorf("error = %v, want wrapped SchemaError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Simulate: %v", err)
			}
			if got.IsFinal != tt.wantFinal {
				t.Errorf("IsFinal = %v, want %v", got.IsFinal, tt.wantFinal)
			}
			if got.IsFinal && (len(got.Options) != 0 || got.FeedbackPrompt == "") {
				t.Errorf("final turn = %+v, want no options and a feedback prompt", got)
			}
			if !got.IsFinal && (len(got.Options) < 2 || got.FeedbackPrompt != "") {
				t.Errorf("non-final turn = %+v, want options and no feedback prompt", got)
			}
		})
	}
}

func TestReport(t *testing.T) {
	scores := `[{"name":"Logical Reasoning","score":80},{"name":"Numerical Ability","score":70},{"name":"Spatial Reasoning","score":60},{"name":"Verbal Ability","score":50}]`
	tests := []struct {
		name    string
		reply   string
		wantErr bool
	}{
		{"valid", `{"strengths":"s","suitability":"u","jobProspects":["Developer"],"aptitudeScores":` + scores + `}`, false},
		{"no prospects", `{"strengths":"s","suitability":"u","jobProspects":[],"aptitudeScores":` + scores + `}`, true},
		{"three scores", `{"strengths":"s","suitability":"u","jobProspects":["d"],"aptitudeScores":[{"name":"Logical Reasoning","score":1},{"name":"Numerical Ability","score":1},{"name":"Verbal Ability","score":1}]}`, true},
		{"unknown name", `{"strengths":"s","suitability":"u","jobProspects":["d"],"aptitudeScores":[{"name":"Logical Reasoning","score":1},{"name":"Numerical Ability","score":1},{"name":"Verbal Ability","score":1},{"name":"Charm","score":1}]}`, true},
		{"out of range", `{"strengths":"s","suitability":"u","jobProspects":["d"],"aptitudeScores":` + strings.Replace(scores, "80", "120", 1) + `}`, true},
		{"duplicate name", `{"strengths":"s","suitability":"u","jobProspects":["d"],"aptitudeScores":` + strings.Replace(scores, "Verbal Ability", "Spatial Reasoning", 1) + `}`, true},
		{"missing strengths", `{"suitability":"u","jobProspects":["d"],"aptitudeScores":` + scores + `}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &fakeChat{reply: tt.reply})
			got, err := c.Report(context.Background(), model.ReportRequest{
				Stream:   "Software Engineering",
				Feedback: model.FeedbackPositive,
				Answers:  make([]string, 8),
			})
			if tt.wantErr {
				wantKind(t, err, model.MalformedOutput)
				return
			}
			if err != nil {
				t.Fatalf("Report: %v", err)
			}
			if len(got.AptitudeScores) != 4 {
				t.Errorf("scores = %d, want 4", len(got.AptitudeScores))
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.ModelErrorKind
	}{
		{"not found", &openai.APIError{HTTPStatusCode: http.StatusNotFound, Message: "no such model"}, model.ModelNotFound},
		{"unauthorized", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}, model.MissingCredential},
		{"forbidden", &openai.RequestError{HTTPStatusCode: http.StatusForbidden, Err: errors.New("denied")}, model.MissingCredential},
		{"server error", &openai.APIError{HTTPStatusCode: http.StatusInternalServerError}, model.GatewayUnavailable},
		{"network", errors.New("connection refused"), model.GatewayUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &fakeChat{err: tt.err})
			_, err := c.Simulate(context.Background(), model.SimulationRequest{Stream: "x"})
			wantKind(t, err, tt.want)
			if !errors.Is(err, tt.err) {
				t.Errorf("error should wrap the API error")
			}
		})
	}
}

func TestPing(t *testing.T) {
	c := newTestClient(t, &fakeChat{})
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	c = newTestClient(t, &fakeChat{err: &openai.APIError{HTTPStatusCode: http.StatusNotFound}})
	wantKind(t, c.Ping(context.Background()), model.ModelNotFound)
}
