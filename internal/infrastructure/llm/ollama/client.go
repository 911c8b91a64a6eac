// Package ollama talks to a self-hosted Ollama server through /api/generate.
package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/llm/common"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/resilience"
)

const providerName = "ollama"

type Options struct {
	Timeout            time.Duration
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
	Temperature        float64
	MaxTokens          int
}

type Client struct {
	baseURL     string
	model       string
	httpClient  *http.Client
	executor    *resilience.Executor
	temperature float64
	maxTokens   int
}

func New(baseURL, model string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		httpClient:  httpClient,
		executor:    opts.ResilienceExecutor,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
	}
}

type generateResponse struct {
	Response        string `json:"response"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (c *Client) Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (domain.Completion, error) {
	resp, err := c.generate(ctx, "complete", c.request(prompt, opts, nil))
	if err != nil {
		return domain.Completion{}, err
	}
	return domain.Completion{
		Text:         strings.TrimSpace(resp.Response),
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
		FinishReason: resp.DoneReason,
	}, nil
}

func (c *Client) CompleteStructured(ctx context.Context, prompt string, schema map[string]any, opts domain.CompletionOptions) (domain.StructuredCompletion, error) {
	resp, err := c.generate(ctx, "complete_structured", c.request(buildStructuredPrompt(prompt, schema), opts, schema))
	if err != nil {
		return domain.StructuredCompletion{}, err
	}
	data, err := common.DecodeObject("ollama.complete_structured", resp.Response)
	if err != nil {
		return domain.StructuredCompletion{}, err
	}
	return domain.StructuredCompletion{
		Data:         data,
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
	}, nil
}

func (c *Client) CountTokens(text string) int {
	return common.ApproxTokens(text)
}

func (c *Client) EstimateCost(inputTokens, outputTokens int) float64 {
	return common.LocalPrices.EstimateCost(c.model, inputTokens, outputTokens)
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) request(prompt string, opts domain.CompletionOptions, schema map[string]any) map[string]any {
	temperature := c.temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	options := map[string]any{"temperature": temperature}
	maxTokens := c.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	if maxTokens > 0 {
		options["num_predict"] = maxTokens
	}

	body := map[string]any{
		"model":   c.model,
		"prompt":  prompt,
		"stream":  false,
		"options": options,
	}
	if opts.System != "" {
		body["system"] = opts.System
	}
	if schema != nil {
		body["format"] = schema
	}
	return body
}

func (c *Client) generate(ctx context.Context, operation string, body map[string]any) (generateResponse, error) {
	resp, err := resilience.Do(ctx, c.executor, "ollama."+operation, func(callCtx context.Context) (generateResponse, error) {
		var out generateResponse
		err := common.PostJSON(callCtx, c.httpClient, providerName, operation, c.baseURL+"/api/generate", nil, body, &out)
		return out, err
	}, common.ClassifyHTTPError)
	if err != nil {
		return generateResponse{}, common.WrapProviderError("ollama."+operation, err)
	}
	return resp, nil
}
