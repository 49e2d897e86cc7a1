package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level (distinct from Role which is conversation roles).
type UserRole string

const (
	// UserRoleStudent is an anonymous student explorer.
	UserRoleStudent UserRole = "student"
	// UserRoleAdmin can list finished explorations.
	UserRoleAdmin UserRole = "admin"
)

// User represents a signed-in identity.
type User struct {
	ID           string
	Username     string // empty for anonymous students
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Identity is what the identity provider hands out on sign-in.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Token       string `json:"-"`
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// Role represents a conversation turn author.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Feedback is the student's verdict on a simulated career.
type Feedback string

const (
	FeedbackNone     Feedback = ""
	FeedbackPositive Feedback = "positive"
	FeedbackNegative Feedback = "negative"
)

// Valid reports whether f is one of the two accepted verdicts.
func (f Feedback) Valid() bool {
	return f == FeedbackPositive || f == FeedbackNegative
}

// QuizResult is produced once per completed quiz.
type QuizResult struct {
	Answers   []string `json:"answers"`
	TimeTaken int      `json:"timeTaken"`
}

// ConversationTurn is one entry of a simulation transcript.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// AptitudeAnalysis is the analyzer's recommendation for a quiz result.
type AptitudeAnalysis struct {
	Recommendation string   `json:"recommendation"`
	Streams        []string `json:"streams"`
}

// AptitudeScore is one slice of the report chart.
type AptitudeScore struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// DetailedReport is the parent-facing report for one (stream, feedback) pair.
type DetailedReport struct {
	Strengths      string          `json:"strengths"`
	Suitability    string          `json:"suitability"`
	JobProspects   []string        `json:"jobProspects"`
	AptitudeScores []AptitudeScore `json:"aptitudeScores"`
}

// Aptitude dimensions scored in every report.
const (
	AptitudeLogical   = "Logical Reasoning"
	AptitudeNumerical = "Numerical Ability"
	AptitudeSpatial   = "Spatial Reasoning"
	AptitudeVerbal    = "Verbal Ability"
)

// AptitudeDimensions lists the report's score names in chart order.
var AptitudeDimensions = []string{AptitudeLogical, AptitudeNumerical, AptitudeSpatial, AptitudeVerbal}

// SimulationRequest is the input of one simulation turn.
type SimulationRequest struct {
	Stream       string             `json:"careerStream"`
	Preferences  []string           `json:"userPreferences"`
	History      []ConversationTurn `json:"conversationHistory"`
	UserResponse string             `json:"userResponse,omitempty"`
}

// ScenarioTurn is the gateway's answer to a SimulationRequest.
type ScenarioTurn struct {
	Scenario       string   `json:"scenario"`
	Options        []string `json:"options,omitempty"`
	IsFinal        bool     `json:"isFinal"`
	FeedbackPrompt string   `json:"feedbackPrompt,omitempty"`
}

// ReportRequest is the input of the report generator.
type ReportRequest struct {
	Stream   string   `json:"careerStream"`
	Feedback Feedback `json:"userFeedback"`
	Answers  []string `json:"quizAnswers"`
}

// SimulationPhase is the simulation controller's state.
type SimulationPhase string

const (
	PhaseIdle                  SimulationPhase = "idle"
	PhaseAwaitingFirstScenario SimulationPhase = "awaiting_first_scenario"
	PhaseAwaitingChoice        SimulationPhase = "awaiting_choice"
	PhaseFinalAwaitingFeedback SimulationPhase = "final_awaiting_feedback"
	PhaseFeedbackReceived      SimulationPhase = "feedback_received"
)

// SimulationState is a snapshot of one stream's simulation run.
type SimulationState struct {
	Phase          SimulationPhase    `json:"phase"`
	Stream         string             `json:"stream"`
	History        []ConversationTurn `json:"history"`
	LastScenario   string             `json:"lastScenario,omitempty"`
	LastOptions    []string           `json:"lastOptions,omitempty"`
	IsFinal        bool               `json:"isFinal"`
	FeedbackPrompt string             `json:"feedbackPrompt,omitempty"`
	Feedback       Feedback           `json:"feedback,omitempty"`
	Pending        bool               `json:"pending"`
}

// ModelTurns counts the model-authored turns in a history.
func ModelTurns(history []ConversationTurn) int {
	count := 0
	for _, t := range history {
		if t.Role == RoleModel {
			count++
		}
	}
	return count
}

// DashboardPhase is the page-level state.
type DashboardPhase string

const (
	DashboardLoading   DashboardPhase = "loading"
	DashboardAnalyzing DashboardPhase = "analyzing"
	DashboardResults   DashboardPhase = "results"
	DashboardSimulated DashboardPhase = "simulated"
)

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	BasePath      string        // URL prefix for sub-path deployments
	SecureCookies bool          // Set Secure flag on cookies (disable for local dev)
	TransientTTL  time.Duration // How long a finished quiz waits for the dashboard
}
