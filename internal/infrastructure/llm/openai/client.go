// Package openai implements the gateway over the chat completions API.
// Structured requests use a forced function call.
package openai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/llm/common"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/resilience"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com/v1"
)

type Options struct {
	BaseURL            string
	Timeout            time.Duration
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
	Temperature        float64
	MaxTokens          int
	TemperaturePolicy  common.TemperaturePolicy
}

type Client struct {
	baseURL     string
	apiKey      string
	model       string
	httpClient  *http.Client
	executor    *resilience.Executor
	temperature float64
	maxTokens   int
	policy      common.TemperaturePolicy
}

func New(apiKey, model string, opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		httpClient:  httpClient,
		executor:    opts.ResilienceExecutor,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		policy:      opts.TemperaturePolicy,
	}
}

func (c *Client) Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (domain.Completion, error) {
	resp, err := c.chat(ctx, "complete", c.request(prompt, opts))
	if err != nil {
		return domain.Completion{}, err
	}
	choice, err := resp.firstChoice("openai.complete")
	if err != nil {
		return domain.Completion{}, err
	}
	in, out := resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	return domain.Completion{
		Text:         strings.TrimSpace(choice.Message.Content),
		InputTokens:  in,
		OutputTokens: out,
		Cost:         c.EstimateCost(in, out),
		FinishReason: choice.FinishReason,
	}, nil
}

func (c *Client) CompleteStructured(ctx context.Context, prompt string, schema map[string]any, opts domain.CompletionOptions) (domain.StructuredCompletion, error) {
	name := common.ToolName(schema)
	body := c.request(prompt, opts)
	body.Tools = []tool{{
		Type: "function",
		Function: toolFunction{
			Name:        name,
			Description: common.ToolDescription(schema),
			Parameters:  common.ToolParameters(schema),
		},
	}}
	body.ToolChoice = &toolChoice{Type: "function", Function: toolChoiceFunction{Name: name}}

	resp, err := c.chat(ctx, "complete_structured", body)
	if err != nil {
		return domain.StructuredCompletion{}, err
	}
	choice, err := resp.firstChoice("openai.complete_structured")
	if err != nil {
		return domain.StructuredCompletion{}, err
	}

	raw := choice.Message.Content
	for _, call := range choice.Message.ToolCalls {
		if call.Function.Name == name {
			raw = call.Function.Arguments
			break
		}
	}
	data, err := common.DecodeObject("openai.complete_structured", raw)
	if err != nil {
		return domain.StructuredCompletion{}, err
	}
	in, out := resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	return domain.StructuredCompletion{
		Data:         data,
		InputTokens:  in,
		OutputTokens: out,
		Cost:         c.EstimateCost(in, out),
	}, nil
}

func (c *Client) CountTokens(text string) int {
	return common.ApproxTokens(text)
}

func (c *Client) EstimateCost(inputTokens, outputTokens int) float64 {
	return common.OpenAIPrices.EstimateCost(c.model, inputTokens, outputTokens)
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) request(prompt string, opts domain.CompletionOptions) chatRequest {
	messages := make([]chatMessage, 0, 2)
	if opts.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: opts.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	maxTokens := c.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	return chatRequest{
		Model:               c.model,
		Messages:            messages,
		Temperature:         c.policy.Resolve(c.model, opts, c.temperature),
		MaxCompletionTokens: maxTokens,
	}
}

func (c *Client) chat(ctx context.Context, operation string, body chatRequest) (chatResponse, error) {
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	resp, err := resilience.Do(ctx, c.executor, "openai."+operation, func(callCtx context.Context) (chatResponse, error) {
		var out chatResponse
		err := common.PostJSON(callCtx, c.httpClient, providerName, operation, c.baseURL+"/chat/completions", headers, body, &out)
		return out, err
	}, common.ClassifyHTTPError)
	if err != nil {
		return chatResponse{}, common.WrapProviderError("openai."+operation, err)
	}
	return resp, nil
}
