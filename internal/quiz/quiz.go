// Package quiz runs the fixed aptitude battery a student answers before
// reaching the dashboard.
package quiz

import (
	"errors"
	"math"
	"slices"
	"time"

	"github.com/pavelanni/careercompass/internal/model"
)

// Question is one multiple-choice item of the battery.
type Question struct {
	ID       string   `json:"id"`
	Aptitude string   `json:"aptitude"`
	Text     string   `json:"question"`
	Options  []string `json:"options"`
}

var battery = []Question{
	{
		ID:       "q1",
		Aptitude: model.AptitudeLogical,
		Text:     "'Ocean' is to 'Water' as 'Desert' is to...?",
		Options:  []string{"Cactus", "Sand", "Heat", "Camel"},
	},
	{
		ID:       "q2",
		Aptitude: model.AptitudeNumerical,
		Text:     "If a notebook and a pencil cost $1.10 in total, and the notebook costs $1.00 more than the pencil, how much does the pencil cost?",
		Options:  []string{"$0.10", "$0.05", "$0.01", "$0.15"},
	},
	{
		ID:       "q3",
		Aptitude: model.AptitudeSpatial,
		Text:     "You have a square piece of paper. You fold it in half once, then in half again to make a smaller square. If you cut off one corner of the folded square and then unfold it, how many holes will be in the paper?",
		Options:  []string{"1", "2", "4", "8"},
	},
	{
		ID:       "q4",
		Aptitude: model.AptitudeLogical,
		Text:     "If today is Monday, what day will it be in 63 days?",
		Options:  []string{"Monday", "Tuesday", "Sunday", "Wednesday"},
	},
	{
		ID:       "q5",
		Aptitude: model.AptitudeNumerical,
		Text:     "Which number comes next? 1, 2, 4, 7, 11, ...",
		Options:  []string{"14", "15", "16", "17"},
	},
	{
		ID:       "q6",
		Aptitude: model.AptitudeSpatial,
		Text:     "If Gear A is turning clockwise and is touching Gear B, which way is Gear B turning?",
		Options:  []string{"Clockwise", "Counter-clockwise", "It won't move"},
	},
	{
		ID:       "q7",
		Aptitude: model.AptitudeVerbal,
		Text:     "Which word is the most 'different' from the others?",
		Options:  []string{"Happy", "Excited", "Cheerful", "Calm"},
	},
	{
		ID:       "q8",
		Aptitude: model.AptitudeVerbal,
		Text:     "A farmer has 17 sheep. All but 9 run away. How many sheep are left?",
		Options:  []string{"8", "9", "17", "0"},
	},
}

// Size is the fixed number of questions in the battery.
var Size = len(battery)

// Battery returns a copy of the ordered questions.
func Battery() []Question {
	out := make([]Question, len(battery))
	for i, q := range battery {
		q.Options = slices.Clone(q.Options)
		out[i] = q
	}
	return out
}

var (
	ErrNotStarted   = errors.New("quiz not started")
	ErrQuizComplete = errors.New("quiz already complete")
	ErrBadOption    = errors.New("option is not offered for this question")
)

// Session tracks one pass through the battery. It is not safe for
// concurrent use; callers serialize access per user.
type Session struct {
	now     func() time.Time
	started time.Time
	index   int
	answers []string
	result  *model.QuizResult
}

// New creates a session that reads wall-clock time from now.
func New(now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{now: now, answers: make([]string, len(battery))}
}

// Start records the moment the first question is rendered. Calling it
// again keeps the original start time.
func (s *Session) Start() Question {
	if s.started.IsZero() {
		s.started = s.now()
	}
	return s.Current()
}

// Started reports whether Start has been called.
func (s *Session) Started() bool { return !s.started.IsZero() }

// Current returns the question being shown.
func (s *Session) Current() Question {
	return battery[min(s.index, len(battery)-1)]
}

// Index returns the zero-based position of the current question.
func (s *Session) Index() int { return s.index }

// Done reports whether the final question has been submitted.
func (s *Session) Done() bool { return s.result != nil }

// Answer records option for the current question and advances. On the last
// question it produces the result.
func (s *Session) Answer(option string) (*model.QuizResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if !slices.Contains(battery[s.index].Options, option) {
		return nil, ErrBadOption
	}
	return s.record(option), nil
}

// Skip records an empty answer for the current question and advances.
func (s *Session) Skip() (*model.QuizResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.record(""), nil
}

// Back returns to the previous question. At the first question it is a no-op
// and reports false.
func (s *Session) Back() bool {
	if s.result != nil || s.index == 0 {
		return false
	}
	s.index--
	return true
}

// Result returns the finished result, or nil while the quiz is running.
func (s *Session) Result() *model.QuizResult {
	if s.result == nil {
		return nil
	}
	r := *s.result
	r.Answers = slices.Clone(r.Answers)
	return &r
}

func (s *Session) checkOpen() error {
	if s.started.IsZero() {
		return ErrNotStarted
	}
	if s.result != nil {
		return ErrQuizComplete
	}
	return nil
}

func (s *Session) record(answer string) *model.QuizResult {
	s.answers[s.index] = answer
	if s.index < len(battery)-1 {
		s.index++
		return nil
	}
	elapsed := s.now().Sub(s.started).Seconds()
	s.result = &model.QuizResult{
		Answers:   slices.Clone(s.answers),
		TimeTaken: int(math.Max(0, math.Round(elapsed))),
	}
	return s.Result()
}
