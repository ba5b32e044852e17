// Package estimate asks a generative AI model for a price range of the property described in a lead.
package estimate

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

	"github.com/ubuntu/decorate"

	"github.com/forgehomes/lead-intake/internal/constants"
	"github.com/forgehomes/lead-intake/internal/lead"
)

// ErrInvalidResponse is returned when the model answer does not have the expected structure.
var ErrInvalidResponse = errors.New("invalid AI response")

// ProviderError is returned when the model endpoint answers with a non 2xx status.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("AI provider error: %d %s", e.StatusCode, e.Body)
}

// Client calls the Gemini generateContent endpoint with a schema constrained JSON response.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// Option overrides a Client default.
type Option func(*Client)

// WithBaseURL sets the API root, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if strings.TrimSpace(baseURL) != "" {
			c.baseURL = baseURL
		}
	}
}

// WithModel selects the model answering the estimate requests.
func WithModel(model string) Option {
	return func(c *Client) {
		if strings.TrimSpace(model) != "" {
			c.model = model
		}
	}
}

// WithTimeout sets the HTTP client timeout. Zero keeps the transport defaults.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient returns a client authenticating with the given API key.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    constants.DefaultEstimateBaseURL,
		apiKey:     apiKey,
		model:      constants.DefaultEstimateModel,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Estimate returns the price range the model predicts for the lead property.
func (c *Client) Estimate(ctx context.Context, sub lead.Submission) (est lead.Estimate, err error) {
	defer decorate.OnError(&err, "could not estimate lead price")

	if c == nil {
		return lead.Estimate{}, errors.New("estimate client is nil")
	}
	body, err := json.Marshal(newGenerateRequest(Prompt(sub)))
	if err != nil {
		return lead.Estimate{}, fmt.Errorf("could not encode estimate request: %v", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?%s",
		strings.TrimRight(c.baseURL, "/"),
		url.PathEscape(c.model),
		url.Values{"key": {c.apiKey}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return lead.Estimate{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The request URL carries the API key: do not leak it through the url.Error.
		var uErr *url.Error
		if errors.As(err, &uErr) {
			err = uErr.Err
		}
		return lead.Estimate{}, fmt.Errorf("could not reach AI provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return lead.Estimate{}, &ProviderError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var gen generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return lead.Estimate{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	text, ok := gen.text()
	if !ok {
		return lead.Estimate{}, fmt.Errorf("%w: no candidate text", ErrInvalidResponse)
	}
	return parseEstimate(text)
}

// parseEstimate decodes the JSON encoded answer of the model. All three values are required.
func parseEstimate(text string) (lead.Estimate, error) {
	var v struct {
		EstimatedValue *float64 `json:"estimatedValue"`
		LowValue       *float64 `json:"lowValue"`
		HighValue      *float64 `json:"highValue"`
	}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return lead.Estimate{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if v.EstimatedValue == nil || v.LowValue == nil || v.HighValue == nil {
		return lead.Estimate{}, fmt.Errorf("%w: missing estimate values", ErrInvalidResponse)
	}

	return lead.Estimate{
		EstimatedValue: *v.EstimatedValue,
		LowValue:       *v.LowValue,
		HighValue:      *v.HighValue,
	}, nil
}
