// Package anthropic implements the gateway over the Messages API using the
// official SDK. Structured requests force a single tool call.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

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
	client      anthropic.Client
	model       string
	executor    *resilience.Executor
	temperature float64
	maxTokens   int
}

func New(apiKey, model string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	requestOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		// Retries are owned by the resilience executor and the retry decorator.
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(base))
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	return &Client{
		client:      anthropic.NewClient(requestOpts...),
		model:       model,
		executor:    opts.ResilienceExecutor,
		temperature: opts.Temperature,
		maxTokens:   maxTokens,
	}
}

func (c *Client) Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (domain.Completion, error) {
	resp, err := c.send(ctx, "complete", c.params(prompt, opts))
	if err != nil {
		return domain.Completion{}, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	in, out := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
	return domain.Completion{
		Text:         strings.TrimSpace(text.String()),
		InputTokens:  in,
		OutputTokens: out,
		Cost:         c.EstimateCost(in, out),
		FinishReason: string(resp.StopReason),
	}, nil
}

func (c *Client) CompleteStructured(ctx context.Context, prompt string, schema map[string]any, opts domain.CompletionOptions) (domain.StructuredCompletion, error) {
	name := common.ToolName(schema)
	params := c.params(prompt, opts)
	tool := anthropic.ToolParam{
		Name:        name,
		Description: anthropic.String(common.ToolDescription(schema)),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: schema["properties"],
			Required:   common.RequiredFields(schema),
		},
	}
	params.Tools = []anthropic.ToolUnionParam{{OfTool: &tool}}
	params.ToolChoice = anthropic.ToolChoiceParamOfTool(name)

	resp, err := c.send(ctx, "complete_structured", params)
	if err != nil {
		return domain.StructuredCompletion{}, err
	}

	var data map[string]any
	for _, block := range resp.Content {
		if block.Type != "tool_use" || block.Name != name {
			continue
		}
		if err := json.Unmarshal(block.Input, &data); err != nil {
			return domain.StructuredCompletion{}, domain.WrapError(domain.ErrInvalidInput, "anthropic.complete_structured", fmt.Errorf("parse tool input: %w", err))
		}
		break
	}
	if data == nil {
		return domain.StructuredCompletion{}, domain.WrapError(domain.ErrInvalidInput, "anthropic.complete_structured", fmt.Errorf("response has no %s tool call", name))
	}

	in, out := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
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
	return common.AnthropicPrices.EstimateCost(c.model, inputTokens, outputTokens)
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) params(prompt string, opts domain.CompletionOptions) anthropic.MessageNewParams {
	maxTokens := c.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	temperature := c.temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if opts.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.System}}
	}
	return params
}

func (c *Client) send(ctx context.Context, operation string, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	resp, err := resilience.Do(ctx, c.executor, "anthropic."+operation, func(callCtx context.Context) (*anthropic.Message, error) {
		msg, err := c.client.Messages.New(callCtx, params)
		if err != nil {
			return nil, normalizeError(operation, err)
		}
		return msg, nil
	}, common.ClassifyHTTPError)
	if err != nil {
		return nil, common.WrapProviderError("anthropic."+operation, err)
	}
	return resp, nil
}

// normalizeError turns SDK API errors into the shared status error so the
// common classifier can see the HTTP status.
func normalizeError(operation string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &common.HTTPStatusError{
			Provider:   "anthropic",
			Operation:  operation,
			StatusCode: apiErr.StatusCode,
			Status:     http.StatusText(apiErr.StatusCode),
			Body:       apiErr.RawJSON(),
		}
	}
	return err
}
