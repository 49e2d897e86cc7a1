// Package llm is the completion gateway: analysis, simulation turns and
// reports over an OpenAI-compatible chat API, validated before use.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pavelanni/careercompass/internal/llm/prompts"
	"github.com/pavelanni/careercompass/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultModel is used when no model override is configured.
const DefaultModel = "gemini-2.0-flash"

// DefaultBaseURL is Gemini's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// DefaultFinalTurn is the number of model turns after which a simulation concludes.
const DefaultFinalTurn = 2

// chatAPI is the subset of *openai.Client the gateway uses.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	GetModel(ctx context.Context, modelID string) (openai.Model, error)
}

// Client is the completion gateway. Every call validates the response
// against the declared output shape before returning it.
type Client struct {
	api       chatAPI
	model     string
	finalTurn int
}

// New creates a gateway client. An empty apiKey yields a disabled client
// whose calls fail with a missing_credential ModelError; see Configured.
func New(baseURL, apiKey, modelName string, finalTurn int) (*Client, error) {
	if err := prompts.Load(prompts.FS); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	if finalTurn <= 0 {
		finalTurn = DefaultFinalTurn
	}
	c := &Client{model: modelName, finalTurn: finalTurn}
	if apiKey == "" {
		return c, nil
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	c.api = openai.NewClientWithConfig(config)
	return c, nil
}

// Configured returns a ConfigurationError when no credential was supplied.
func (c *Client) Configured() error {
	if c.api == nil {
		return &model.ConfigurationError{Key: "llm-key", Feature: "completion gateway"}
	}
	return nil
}

// Model returns the model identifier in use.
func (c *Client) Model() string { return c.model }

// FinalTurn returns the model turn count at which simulations conclude.
func (c *Client) FinalTurn() int { return c.finalTurn }

// Ping checks that the configured model exists.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.Configured(); err != nil {
		return err
	}
	if _, err := c.api.GetModel(ctx, c.model); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Analyze turns a quiz result into a stream recommendation.
func (c *Client) Analyze(ctx context.Context, r model.QuizResult) (model.AptitudeAnalysis, error) {
	const op = "analyze"
	var out model.AptitudeAnalysis

	prompt, err := prompts.BuildAnalyzePrompt(r)
	if err != nil {
		return out, fmt.Errorf("build analyze prompt: %w", err)
	}
	raw, err := c.complete(ctx, op, prompt, 0.7)
	if err != nil {
		return out, err
	}
	if err := decode(raw, &out); err != nil {
		return out, malformed(op, err, raw)
	}
	if err := validateAnalysis(&out); err != nil {
		return out, malformed(op, err, raw)
	}
	return out, nil
}

// Simulate produces the next turn of a career simulation. Finality is this
// gateway's policy: the turn is final once the supplied history already
// holds FinalTurn model turns.
func (c *Client) Simulate(ctx context.Context, req model.SimulationRequest) (model.ScenarioTurn, error) {
	const op = "simulate"
	var out model.ScenarioTurn

	prompt, err := prompts.BuildSimulatePrompt(req, c.finalTurn)
	if err != nil {
		return out, fmt.Errorf("build simulate prompt: %w", err)
	}
	raw, err := c.complete(ctx, op, prompt, 0.8)
	if err != nil {
		return out, err
	}
	if err := decode(raw, &out); err != nil {
		return out, malformed(op, err, raw)
	}
	final := model.ModelTurns(req.History) >= c.finalTurn
	if err := validateScenario(&out, final); err != nil {
		return out, malformed(op, err, raw)
	}
	return out, nil
}

// Report writes the detailed report for a stream and feedback.
func (c *Client) Report(ctx context.Context, req model.ReportRequest) (model.DetailedReport, error) {
	const op = "report"
	var out model.DetailedReport

	prompt, err := prompts.BuildReportPrompt(req)
	if err != nil {
		return out, fmt.Errorf("build report prompt: %w", err)
	}
	raw, err := c.complete(ctx, op, prompt, 0.3)
	if err != nil {
		return out, err
	}
	if err := decode(raw, &out); err != nil {
		return out, malformed(op, err, raw)
	}
	if err := validateReport(&out); err != nil {
		return out, malformed(op, err, raw)
	}
	return out, nil
}

func (c *Client) complete(ctx context.Context, op, prompt string, temperature float32) (string, error) {
	if c.api == nil {
		return "", &model.ModelError{Op: op, Kind: model.MissingCredential, Err: c.Configured()}
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", classify(op, err)
	}
	if len(resp.Choices) == 0 {
		return "", &model.ModelError{Op: op, Kind: model.MalformedOutput, Err: errors.New("LLM returned no choices")}
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "op", op, "model", c.model, "raw", raw)
	return raw, nil
}

func classify(op string, err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	kind := model.GatewayUnavailable
	switch status {
	case http.StatusNotFound:
		kind = model.ModelNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = model.MissingCredential
	}
	return &model.ModelError{Op: op, Kind: kind, Err: fmt.Errorf("LLM API call: %w", err)}
}

func malformed(op string, err error, raw string) error {
	slog.Warn("LLM response failed validation", "op", op, "error", err, "raw", raw)
	return &model.ModelError{Op: op, Kind: model.MalformedOutput, Err: err}
}
