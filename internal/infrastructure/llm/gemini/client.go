// Package gemini implements the gateway over the Gemini API via genai.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/llm/common"
	"github.com/Kenny1338/better-paperless-ngx/internal/infrastructure/resilience"
)

type Options struct {
	BaseURL            string
	Timeout            time.Duration
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
	Temperature        float64
	MaxTokens          int
}

type Client struct {
	client      *genai.Client
	model       string
	executor    *resilience.Executor
	temperature float64
	maxTokens   int
}

func New(ctx context.Context, apiKey, model string, opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}
	return &Client{
		client:      client,
		model:       model,
		executor:    opts.ResilienceExecutor,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
	}, nil
}

func (c *Client) Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (domain.Completion, error) {
	resp, err := c.generate(ctx, "complete", prompt, c.config(opts))
	if err != nil {
		return domain.Completion{}, err
	}
	in, out := usage(resp)
	finish := ""
	if len(resp.Candidates) > 0 {
		finish = string(resp.Candidates[0].FinishReason)
	}
	return domain.Completion{
		Text:         strings.TrimSpace(resp.Text()),
		InputTokens:  in,
		OutputTokens: out,
		Cost:         c.EstimateCost(in, out),
		FinishReason: finish,
	}, nil
}

func (c *Client) CompleteStructured(ctx context.Context, prompt string, schema map[string]any, opts domain.CompletionOptions) (domain.StructuredCompletion, error) {
	cfg := c.config(opts)
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = convertSchema(common.ToolParameters(schema))

	resp, err := c.generate(ctx, "complete_structured", prompt, cfg)
	if err != nil {
		return domain.StructuredCompletion{}, err
	}
	data, err := common.DecodeObject("gemini.complete_structured", resp.Text())
	if err != nil {
		return domain.StructuredCompletion{}, err
	}
	in, out := usage(resp)
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
	return common.GeminiPrices.EstimateCost(c.model, inputTokens, outputTokens)
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) config(opts domain.CompletionOptions) *genai.GenerateContentConfig {
	temperature := c.temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	maxTokens := c.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	if opts.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(opts.System, genai.RoleUser)
	}
	return cfg
}

func (c *Client) generate(ctx context.Context, operation, prompt string, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := resilience.Do(ctx, c.executor, "gemini."+operation, func(callCtx context.Context) (*genai.GenerateContentResponse, error) {
		out, err := c.client.Models.GenerateContent(callCtx, c.model, genai.Text(prompt), cfg)
		if err != nil {
			return nil, normalizeError(operation, err)
		}
		if out == nil || len(out.Candidates) == 0 {
			return nil, domain.WrapError(domain.ErrApplication, "gemini."+operation, fmt.Errorf("response has no candidates"))
		}
		return out, nil
	}, common.ClassifyHTTPError)
	if err != nil {
		return nil, common.WrapProviderError("gemini."+operation, err)
	}
	return resp, nil
}

func usage(resp *genai.GenerateContentResponse) (int, int) {
	if resp == nil || resp.UsageMetadata == nil {
		return 0, 0
	}
	return int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount)
}

func normalizeError(operation string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError(operation, apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return statusError(operation, *apiErrPtr)
	}
	return err
}

func statusError(operation string, apiErr genai.APIError) error {
	return &common.HTTPStatusError{
		Provider:   "gemini",
		Operation:  operation,
		StatusCode: apiErr.Code,
		Status:     apiErr.Status,
		Body:       apiErr.Message,
	}
}
