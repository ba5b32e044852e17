package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ubuntu/decorate"

	"github.com/forgehomes/lead-intake/internal/constants"
)

// SubmissionError is returned when the CRM answers a contact creation with a non 2xx status.
type SubmissionError struct {
	StatusCode int
	Body       string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("CRM submission error: %d %s", e.StatusCode, e.Body)
}

// Client creates contacts through the HubSpot CRM v3 objects API.
type Client struct {
	baseURL    string
	token      string
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

// WithTimeout sets the HTTP client timeout. Zero keeps the transport defaults.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient returns a client authenticating with the given private app token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    constants.DefaultCRMBaseURL,
		token:      token,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createRequest struct {
	Properties Contact `json:"properties"`
}

type createResponse struct {
	ID string `json:"id"`
}

// CreateContact submits one contact and returns the identifier the CRM assigned to it.
func (c *Client) CreateContact(ctx context.Context, contact Contact) (id string, err error) {
	defer decorate.OnError(&err, "could not create CRM contact")

	if c == nil {
		return "", errors.New("crm client is nil")
	}
	if strings.TrimSpace(c.token) == "" {
		return "", errors.New("crm token is not set")
	}

	body, err := json.Marshal(createRequest{Properties: contact})
	if err != nil {
		return "", fmt.Errorf("could not encode contact: %v", err)
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/crm/v3/objects/contacts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not reach CRM: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &SubmissionError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var created createResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("invalid CRM response: %v", err)
	}
	if created.ID == "" {
		return "", errors.New("invalid CRM response: no contact id")
	}
	return created.ID, nil
}
