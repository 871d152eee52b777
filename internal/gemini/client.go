// Package gemini wraps the single generateContent call the bot makes. Every
// failure comes back as an *Error carrying a message that can be shown to the
// user as is.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"
	DefaultTimeout  = 30 * time.Second

	// maxErrorBody caps how much of a failed response is read and quoted back.
	maxErrorBody = 4 << 10

	geoBlockMarker = "User location is not supported"
	finishSafety   = "SAFETY"
)

const (
	msgConfiguration = "The rewriting service is not configured. Please try again later."
	msgBlocked       = "Your request cannot be processed because of the service's safety settings."
	msgMalformed     = "Sorry, I could not read the rewriting service's answer. Please try again later."
	msgGeoBlocked    = "The service is temporarily unavailable because of regional restrictions. The developer has been notified."
	msgUnavailable   = "Could not connect to the rewriting service. Please try again later."
	msgInternal      = "Something went wrong on our side. Please try again later."
)

type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if strings.TrimSpace(endpoint) != "" {
			c.endpoint = strings.TrimSpace(endpoint)
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a client for apiKey. An empty key is accepted; every call then
// fails with KindConfiguration.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		endpoint:   DefaultEndpoint,
		apiKey:     strings.TrimSpace(apiKey),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type part struct {
	Text *string `json:"text,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type candidate struct {
	Content      *content `json:"content,omitempty"`
	FinishReason string   `json:"finishReason,omitempty"`
}

type generateResponse struct {
	Candidates     []candidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Rewrite sends prompt in one POST and returns the first candidate's text.
// There is no retry.
func (c *Client) Rewrite(ctx context.Context, prompt string) (string, error) {
	callID := uuid.NewString()
	logger := c.logger.With("call_id", callID)

	if c.apiKey == "" {
		logger.Error("gemini_api_key_missing")
		return "", newError(KindConfiguration, 0, msgConfiguration, nil)
	}

	text := prompt
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: &text}}}}})
	if err != nil {
		logger.Error("gemini_encode_failed", "error", err.Error())
		return "", newError(KindInternal, 0, msgInternal, err)
	}

	reqURL, err := c.requestURL()
	if err != nil {
		logger.Error("gemini_endpoint_invalid", "error", err.Error())
		return "", newError(KindConfiguration, 0, msgConfiguration, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		logger.Error("gemini_request_build_failed", "error", err.Error())
		return "", newError(KindInternal, 0, msgInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("gemini_request_failed", "error", redact(err.Error(), c.apiKey), "elapsed", time.Since(start).String())
		return "", newError(KindUnavailable, 0, msgUnavailable, errors.New(redact(err.Error(), c.apiKey)))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", c.statusError(logger, resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error("gemini_read_failed", "status", resp.StatusCode, "error", err.Error())
		return "", newError(KindUnavailable, resp.StatusCode, msgUnavailable, err)
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		logger.Warn("gemini_response_malformed", "error", err.Error(), "payload", string(raw))
		return "", newError(KindMalformed, resp.StatusCode, msgMalformed, err)
	}

	out, kerr := extractText(decoded)
	if kerr != nil {
		kerr.Status = resp.StatusCode
		switch kerr.Kind {
		case KindBlocked:
			logger.Warn("gemini_blocked_by_safety", "payload", string(raw))
		default:
			logger.Warn("gemini_response_malformed", "payload", string(raw))
		}
		return "", kerr
	}

	logger.Info("gemini_rewrite_ok", "elapsed", time.Since(start).String(), "chars", len(out))
	return out, nil
}

func extractText(r generateResponse) (string, *Error) {
	if len(r.Candidates) == 0 {
		if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
			return "", newError(KindBlocked, 0, msgBlocked, fmt.Errorf("prompt blocked: %s", r.PromptFeedback.BlockReason))
		}
		return "", newError(KindMalformed, 0, msgMalformed, errors.New("response has no candidates"))
	}

	first := r.Candidates[0]
	if first.Content != nil && len(first.Content.Parts) > 0 {
		if t := first.Content.Parts[0].Text; t != nil {
			if strings.TrimSpace(*t) == "" {
				return "", newError(KindMalformed, 0, msgMalformed, errors.New("first part has empty text"))
			}
			return *t, nil
		}
		return "", newError(KindMalformed, 0, msgMalformed, errors.New("first part has no text"))
	}
	if first.FinishReason == finishSafety {
		return "", newError(KindBlocked, 0, msgBlocked, errors.New("candidate finished with SAFETY"))
	}
	return "", newError(KindMalformed, 0, msgMalformed, errors.New("candidate has no content"))
}

func (c *Client) statusError(logger *slog.Logger, resp *http.Response) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := strings.TrimSpace(string(raw))

	var apiErr apiErrorBody
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
		detail = apiErr.Error.Message
	}

	if strings.Contains(detail, geoBlockMarker) {
		logger.Error("gemini_geo_blocked", "status", resp.StatusCode, "detail", detail)
		return newError(KindGeoBlocked, resp.StatusCode, msgGeoBlocked, errors.New(detail))
	}

	logger.Error("gemini_http_error", "status", resp.StatusCode, "detail", detail)
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	msg := fmt.Sprintf("Rewriting service error (%d): %s", resp.StatusCode, detail)
	return newError(KindUnavailable, resp.StatusCode, msg, errors.New(detail))
}

func (c *Client) requestURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redact strips the API key from transport errors, which quote the request URL.
func redact(s, key string) string {
	if key == "" {
		return s
	}
	s = strings.ReplaceAll(s, url.QueryEscape(key), "REDACTED")
	return strings.ReplaceAll(s, key, "REDACTED")
}
