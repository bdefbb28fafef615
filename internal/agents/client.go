// Package agents holds the model-backed pipeline collaborators: style
// analysis, planning, conversion and quality scoring. They share one
// OpenAI-compatible chat client; structured replies are requested with a
// JSON schema reflected from the reply type.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	openai "github.com/sashabaranov/go-openai"
	"github.com/xeipuuv/gojsonschema"

	"github.com/valpere/restyle/internal/postprocess"
	"github.com/valpere/restyle/internal/resilience"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
)

var ErrEmptyResponse = errors.New("model returned an empty response")

type ClientConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Temperature <= 0 selects DefaultTemperature. go-openai drops a zero
	// temperature from the request, so 0 cannot be sent.
	Temperature float32
	MaxTokens   int
	// Resilience configures retries, rate limiting and the circuit breaker.
	// Its Retryable func defaults to resilience.OpenAIRetryable.
	Resilience resilience.Config
}

type Client struct {
	api         *openai.Client
	guard       *resilience.Guard
	model       string
	temperature float32
	maxTokens   int
}

// NewClient creates a chat client. An empty BaseURL uses the public OpenAI
// API; zero values fall back to the package defaults.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("LLM API key not set")
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Resilience.Retryable == nil {
		cfg.Resilience.Retryable = resilience.OpenAIRetryable
	}
	c := &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		guard:       resilience.New("llm", cfg.Resilience),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.temperature <= 0 {
		c.temperature = DefaultTemperature
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	return c, nil
}

func (c *Client) request(system, user string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
}

func (c *Client) send(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	var resp openai.ChatCompletionResponse
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.api.CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Complete returns the raw text reply.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	return c.send(ctx, c.request(system, user))
}

// completeJSON asks for a reply matching T's schema, checks the reply
// against that schema and decodes it. Backends that ignore the response
// format are caught by the check.
func completeJSON[T any](ctx context.Context, c *Client, name, system, user string) (T, error) {
	var out T
	schema := schemaFor[T]()
	req := c.request(system, user)
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   name,
			Schema: schema,
			Strict: true,
		},
	}

	text, err := c.send(ctx, req)
	if err != nil {
		return out, err
	}
	body := postprocess.JSON(text)
	if err := validate(schema, body); err != nil {
		return out, fmt.Errorf("invalid %s reply: %w", name, err)
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return out, fmt.Errorf("failed to decode %s reply: %w", name, err)
	}
	return out, nil
}

func validate(schema *jsonschema.Schema, body string) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(raw), gojsonschema.NewStringLoader(body))
	if err != nil {
		return err
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}

// schemaFor reflects an inline schema for T that rejects unknown properties.
func schemaFor[T any]() *jsonschema.Schema {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	s := r.Reflect(v)
	s.Version = ""
	s.ID = ""
	return s
}

func clamp01(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
