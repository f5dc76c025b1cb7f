package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goodtune/wellcore/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// maxErrorBody caps how much of an error response is kept in messages
const maxErrorBody = 512

// HTTPConfig configures the HTTP provider client
type HTTPConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	RateBurst int
}

// HTTPClient talks to the provider's REST API
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// NewHTTPClient creates a provider client
func NewHTTPClient(cfg HTTPConfig, logger zerolog.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     logger.With().Str("component", "provider").Logger(),
	}
}

type createConversationRequest struct {
	ReplicaID             string                 `json:"replica_id"`
	ConversationName      string                 `json:"conversation_name,omitempty"`
	ConversationalContext string                 `json:"conversational_context,omitempty"`
	Properties            conversationProperties `json:"properties"`
}

type conversationProperties struct {
	MaxCallDuration int `json:"max_call_duration"`
}

type createConversationResponse struct {
	ConversationID  string `json:"conversation_id"`
	ConversationURL string `json:"conversation_url"`
	Status          string `json:"status"`
}

// CreateSession opens a conversation upstream
func (c *HTTPClient) CreateSession(ctx context.Context, req CreateRequest) (*Conversation, error) {
	body := createConversationRequest{
		ReplicaID:             req.ReplicaID,
		ConversationalContext: req.Personality,
		Properties:            conversationProperties{MaxCallDuration: req.CeilingSeconds},
	}
	if req.Personality != "" {
		body.ConversationName = "wellcore-" + req.Personality
	}

	respBody, err := c.do(ctx, "create", http.MethodPost, "/v2/conversations", body)
	if err != nil {
		return nil, err
	}

	var resp createConversationResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &Error{Kind: KindInvalidResponse, Message: "malformed conversation response", Err: err}
	}
	if resp.ConversationID == "" || resp.ConversationURL == "" {
		return nil, &Error{Kind: KindInvalidResponse, Message: "conversation response missing id or url"}
	}

	c.logger.Debug().
		Str("conversation_id", resp.ConversationID).
		Str("status", resp.Status).
		Msg("Conversation created")

	return &Conversation{
		ID:     resp.ConversationID,
		URL:    resp.ConversationURL,
		Status: resp.Status,
	}, nil
}

// EndSession terminates a conversation upstream
func (c *HTTPClient) EndSession(ctx context.Context, id string) error {
	_, err := c.do(ctx, "end", http.MethodPost, "/v2/conversations/"+id+"/end", nil)
	return err
}

func (c *HTTPClient) do(ctx context.Context, operation, method, path string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.ProviderRequests.WithLabelValues(operation, "throttled").Inc()
		return nil, err
	}

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.ProviderRequests.WithLabelValues(operation, string(KindNetwork)).Inc()
		return nil, &Error{Kind: KindNetwork, Message: "sending request", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(operation, string(KindNetwork)).Inc()
		return nil, &Error{Kind: KindNetwork, Status: resp.StatusCode, Message: "reading response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := classify(resp.StatusCode, respBody)
		metrics.ProviderRequests.WithLabelValues(operation, string(perr.Kind)).Inc()
		return nil, perr
	}

	metrics.ProviderRequests.WithLabelValues(operation, "ok").Inc()
	return respBody, nil
}

// classify maps an unsuccessful response to an error kind
func classify(status int, body []byte) *Error {
	message := strings.TrimSpace(string(body))
	if len(message) > maxErrorBody {
		message = message[:maxErrorBody]
	}

	kind := KindServerError
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindUnauthorized
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status == http.StatusConflict:
		kind = KindConflict
	case status >= 400 && status < 500:
		if mentionsActiveConversation(message) {
			kind = KindConflict
		} else {
			kind = KindInvalidResponse
		}
	}

	return &Error{Kind: kind, Status: status, Message: message}
}

func mentionsActiveConversation(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "active conversation") ||
		strings.Contains(lower, "maximum concurrent conversations")
}
