package paperless

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxErrorBody = 2048

func (c *Client) call(ctx context.Context, operation, method, path string, query url.Values, payload, out any) error {
	err := c.executor.Execute(ctx, "paperless."+operation, func(callCtx context.Context) error {
		return c.do(callCtx, operation, method, path, query, payload, out)
	}, classifyPaperlessError)
	if err != nil {
		return wrapTemporaryIfNeeded(operation, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, payload, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			// The caller is still waiting: connection failure or client timeout.
			return &transportError{operation: operation, err: err}
		}
		return fmt.Errorf("paperless %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(operation, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func statusError(operation string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(raw)),
	}
	return wrapStatusKind(apiErr)
}

type transportError struct {
	operation string
	err       error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("paperless %s request: %v", e.operation, e.err)
}

func (e *transportError) Unwrap() error {
	return e.err
}
