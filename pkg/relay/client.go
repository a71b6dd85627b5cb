package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxErrorBody = 64 << 10

// HTTPError is a non-2xx answer from the tier below.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// Endpoint issues JSON requests against one downstream tier and turns its
// error envelopes back into categorized errors.
type Endpoint struct {
	baseURL string
	client  *http.Client
}

// NewEndpoint targets baseURL. A zero timeout leaves requests bounded only by ctx.
func NewEndpoint(baseURL string, timeout time.Duration, client *http.Client) (*Endpoint, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	return &Endpoint{baseURL: baseURL, client: client}, nil
}

func (e *Endpoint) BaseURL() string {
	return e.baseURL
}

// Get fetches path with the given query into out.
func (e *Endpoint) Get(ctx context.Context, path string, query url.Values, out any) error {
	target := e.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	return e.do(ctx, http.MethodGet, target, nil, out)
}

// Post sends body as JSON to path and decodes the answer into out.
func (e *Endpoint) Post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return NewError(CategoryInternal, fmt.Sprintf("encode request: %v", err))
	}

	return e.do(ctx, http.MethodPost, e.baseURL+path, payload, out)
}

func (e *Endpoint) do(ctx context.Context, method, target string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return NewError(CategoryInternal, fmt.Sprintf("build request: %v", err))
	}
	request.Header.Set("Accept", "application/json")
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := e.client.Do(request)
	if err != nil {
		return Unreachable(err, transportReason(err))
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return decodeFailure(response)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return NewError(CategoryInternal, fmt.Sprintf("decode response: %v", err))
	}

	return nil
}

// decodeFailure keeps the downstream message and code when the body is an
// error envelope, and falls back to the status code otherwise.
func decodeFailure(response *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))

	var envelope ErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && strings.TrimSpace(envelope.Message) != "" {
		category := Category(strings.TrimSpace(envelope.Code))
		if category == "" {
			category = CategoryFromStatus(response.StatusCode)
		}
		return &Error{
			Category: category,
			Detail:   envelope.Message,
			Err:      &HTTPError{StatusCode: response.StatusCode, Message: envelope.Message},
		}
	}

	message := strings.TrimSpace(string(body))
	if message == "" {
		message = response.Status
	}

	return &Error{
		Category: CategoryFromStatus(response.StatusCode),
		Detail:   message,
		Err:      &HTTPError{StatusCode: response.StatusCode, Message: message},
	}
}

func transportReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return "request timed out"
	}
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}

	return err.Error()
}
