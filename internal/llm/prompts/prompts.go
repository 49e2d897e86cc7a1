package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/careercompass/internal/model"
	"github.com/pavelanni/careercompass/internal/quiz"
	"github.com/pavelanni/careercompass/internal/roadmap"
)

// FS holds the built-in prompt templates.
//
//go:embed templates/*.tmpl
var FS embed.FS

var (
	userResponseRegex = regexp.MustCompile(`(?i)</?\s*user-response\b[^>]*>`)
	quizAnswersRegex  = regexp.MustCompile(`(?i)</?\s*quiz-answers\b[^>]*>`)
)

// Name identifies one of the gateway prompts.
type Name string

const (
	Analyze  Name = "analyze"
	Simulate Name = "simulate"
	Report   Name = "report"
)

var names = []Name{Analyze, Simulate, Report}

const maxFieldRunes = 2000

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Name]*template.Template
)

var funcs = template.FuncMap{
	"join": strings.Join,
	"inc":  func(n int) int { return n + 1 },
}

// AnsweredQuestion pairs a battery question with the student's answer.
type AnsweredQuestion struct {
	Question string
	Answer   string
}

// AnalyzeData holds template data for the analysis prompt.
type AnalyzeData struct {
	Answers      []AnsweredQuestion
	TimeTaken    int
	KnownStreams []string
}

// SimulateData holds template data for the simulation prompt.
type SimulateData struct {
	Stream       string
	Preferences  []string
	History      []model.ConversationTurn
	UserResponse string
	ModelTurns   int
	FinalTurn    int
	Conclude     bool
}

// ReportData holds template data for the report prompt.
type ReportData struct {
	Stream     string
	Feedback   model.Feedback
	Answers    []AnsweredQuestion
	Dimensions []string
}

// Load parses the prompt templates from fsys (normally FS).
// It uses sync.Once to ensure templates are loaded only once.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		templates = make(map[Name]*template.Template)
		for _, n := range names {
			file := "templates/" + string(n) + ".tmpl"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = errors.New("failed to read prompt file " + file + ": " + err.Error())
				return
			}
			tmpl, err := template.New(string(n)).Funcs(funcs).Parse(string(content))
			if err != nil {
				loadErr = errors.New("failed to parse prompt template " + file + ": " + err.Error())
				return
			}
			templates[n] = tmpl
		}
	})
	return loadErr
}

func execute(n Name, data any) (string, error) {
	if templates == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := templates[n]
	if !ok {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("unknown prompt: " + string(n))
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildAnalyzePrompt renders the aptitude analysis prompt.
func BuildAnalyzePrompt(r model.QuizResult) (string, error) {
	return execute(Analyze, AnalyzeData{
		Answers:      pairAnswers(r.Answers),
		TimeTaken:    r.TimeTaken,
		KnownStreams: roadmap.Streams(),
	})
}

// BuildSimulatePrompt renders the next simulation turn prompt. Conclude is set
// once the history holds finalTurn model turns.
func BuildSimulatePrompt(req model.SimulationRequest, finalTurn int) (string, error) {
	history := make([]model.ConversationTurn, len(req.History))
	for i, t := range req.History {
		history[i] = model.ConversationTurn{Role: t.Role, Content: sanitize(t.Content)}
	}
	turns := model.ModelTurns(req.History)
	return execute(Simulate, SimulateData{
		Stream:       sanitize(req.Stream),
		Preferences:  req.Preferences,
		History:      history,
		UserResponse: sanitize(req.UserResponse),
		ModelTurns:   turns,
		FinalTurn:    finalTurn,
		Conclude:     turns >= finalTurn,
	})
}

// BuildReportPrompt renders the detailed report prompt.
func BuildReportPrompt(req model.ReportRequest) (string, error) {
	return execute(Report, ReportData{
		Stream:     sanitize(req.Stream),
		Feedback:   req.Feedback,
		Answers:    pairAnswers(req.Answers),
		Dimensions: model.AptitudeDimensions,
	})
}

func pairAnswers(answers []string) []AnsweredQuestion {
	battery := quiz.Battery()
	out := make([]AnsweredQuestion, 0, len(answers))
	for i, a := range answers {
		q := fmt.Sprintf("Question %d", i+1)
		if i < len(battery) {
			q = battery[i].Text
		}
		out = append(out, AnsweredQuestion{Question: q, Answer: sanitize(a)})
	}
	return out
}

func sanitize(s string) string {
	s = userResponseRegex.ReplaceAllString(s, "")
	s = quizAnswersRegex.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxFieldRunes {
		s = string([]rune(s)[:maxFieldRunes]) + " [truncated]"
	}
	return s
}
