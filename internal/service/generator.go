package service

import (
	"bytes"
	"cicdassess/internal/config"
	"cicdassess/internal/observability"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// TextGenerator produces free text from a system instruction and a prompt
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// NewTextGenerator returns the gateway client, or a mock when no API key is configured
func NewTextGenerator(cfg config.AIConfig) TextGenerator {
	if !cfg.IsEnabled() {
		return MockGenerator{}
	}
	return NewGatewayGenerator(cfg, &http.Client{Timeout: cfg.Timeout()})
}

// GatewayGenerator calls an OpenAI-compatible chat completions endpoint
type GatewayGenerator struct {
	config  config.AIConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewGatewayGenerator creates a rate limited gateway client
func NewGatewayGenerator(cfg config.AIConfig, client *http.Client) *GatewayGenerator {
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = cfg.Concurrency()
	}
	return &GatewayGenerator{
		config:  cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *GatewayGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	ctx, span := observability.Tracer().Start(ctx, "ai.generate")
	defer span.End()
	span.SetAttributes(attribute.String("ai.model", g.config.Model))

	text, err := g.call(ctx, system, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return text, nil
}

func (g *GatewayGenerator) call(ctx context.Context, system, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout())
	defer cancel()

	reqBody := chatRequest{
		Model: g.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.config.Endpoint(), bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.config.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gateway returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", err
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("gateway error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) > 0 {
		return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
	}
	return "", fmt.Errorf("empty response from gateway")
}

// MockGenerator returns canned text so the service works without a gateway key
type MockGenerator struct{}

func (MockGenerator) Generate(_ context.Context, system, _ string) (string, error) {
	if strings.Contains(system, `"actionItems"`) {
		return `{"summary":"Mock analysis - configure AI_GATEWAY_API_KEY for generated insights.","actionItems":["Automate the weakest pipeline stage first","Review this analysis once the gateway is configured"]}`, nil
	}
	return "Mock summary - configure AI_GATEWAY_API_KEY for generated text.", nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
