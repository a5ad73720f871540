// Package api is the REST client of the messaging service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/matheus3301/matchchat/internal/chat"
	"go.uber.org/zap"
)

const maxErrorBody = 4 << 10

// Options configure a Client.
type Options struct {
	BaseURL  string
	Token    string
	Timeout  time.Duration
	RetryMax int
	// RetryWaitMin and RetryWaitMax bound the backoff between retries. Zero keeps
	// the library defaults.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Client talks to the messaging REST API. 5xx and 429 responses and transport
// errors are retried with backoff up to RetryMax times; sends carry the client id
// so a retried POST is deduplicated server-side.
type Client struct {
	base   *url.URL
	token  string
	http   *retryablehttp.Client
	logger *zap.Logger
}

// New creates a client for the service at opts.BaseURL.
func New(opts Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", opts.BaseURL)
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Timeout: opts.Timeout}
	rc.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = leveledLogger{logger.Named("http").Sugar()}

	return &Client{base: base, token: opts.Token, http: rc, logger: logger}, nil
}

// ListConversations fetches the conversation list. silent only matters to the
// caller's loading indicator; the request is identical.
func (c *Client) ListConversations(ctx context.Context, silent bool) ([]chat.Conversation, error) {
	const op = "list conversations"
	var wire []conversationJSON
	if err := c.do(ctx, op, http.MethodGet, "/conversations", nil, "", &wire); err != nil {
		return nil, err
	}
	out := make([]chat.Conversation, 0, len(wire))
	for _, w := range wire {
		conv, err := w.toChat()
		if err != nil {
			return nil, malformed(op, err)
		}
		out = append(out, conv)
	}
	c.logger.Debug("conversations fetched", zap.Int("count", len(out)), zap.Bool("silent", silent))
	return out, nil
}

// ListMessages fetches the history of a conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	const op = "list messages"
	var wire []messageJSON
	if err := c.do(ctx, op, http.MethodGet, conversationPath(conversationID, "messages"), nil, "", &wire); err != nil {
		return nil, err
	}
	out := make([]chat.Message, 0, len(wire))
	for _, w := range wire {
		m, err := w.toChat(conversationID)
		if err != nil {
			return nil, malformed(op, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// SendMessage creates a message. The request carries the client id as an
// idempotency key.
func (c *Client) SendMessage(ctx context.Context, conversationID string, req chat.SendRequest) (chat.Message, error) {
	const op = "send message"
	body, err := json.Marshal(sendRequestJSON{
		ClientID:   req.ClientID,
		Content:    req.Content,
		Attachment: attachmentToJSON(req.Attachment),
	})
	if err != nil {
		return chat.Message{}, chat.E(chat.KindValidation, op, err)
	}
	var wire messageJSON
	if err := c.do(ctx, op, http.MethodPost, conversationPath(conversationID, "messages"), body, "application/json", &wire); err != nil {
		return chat.Message{}, err
	}
	m, err := wire.toChat(conversationID)
	if err != nil {
		return chat.Message{}, malformed(op, err)
	}
	if m.ClientID == "" {
		m.ClientID = req.ClientID
	}
	return m, nil
}

// MarkRead acknowledges the given messages as read.
func (c *Client) MarkRead(ctx context.Context, conversationID string, messageIDs []string) error {
	const op = "mark read"
	body, err := json.Marshal(markReadJSON{MessageIDs: messageIDs})
	if err != nil {
		return chat.E(chat.KindValidation, op, err)
	}
	return c.do(ctx, op, http.MethodPost, conversationPath(conversationID, "read"), body, "application/json", nil)
}

func conversationPath(conversationID, suffix string) string {
	return "/conversations/" + url.PathEscape(conversationID) + "/" + suffix
}

// do performs one logical request and decodes a JSON response into out when it is
// non-nil. Every failure is returned as a *chat.Error.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte, contentType string, out any) error {
	var raw any
	if body != nil {
		raw = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.base.String()+path, raw)
	if err != nil {
		return chat.E(chat.KindValidation, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if resp == nil {
		if err == nil {
			err = errors.New("no response")
		}
		return chat.E(chat.KindNetwork, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if kind := statusKind(resp.StatusCode); kind != chat.KindNone {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("request rejected",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("body", strings.TrimSpace(string(msg))),
		)
		return chat.E(kind, op, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))})
	}
	if err != nil {
		return chat.E(chat.KindNetwork, op, err)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return chat.E(chat.KindNetwork, op, fmt.Errorf("read response: %w", err))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return malformed(op, err)
	}
	return nil
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// statusKind maps an HTTP status to an error kind. Success maps to KindNone.
func statusKind(code int) chat.ErrorKind {
	switch {
	case code >= 200 && code < 300:
		return chat.KindNone
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return chat.KindAuth
	case code == http.StatusTooManyRequests, code >= 500:
		return chat.KindServer
	case code >= 400:
		return chat.KindValidation
	default:
		return chat.KindServer
	}
}

func malformed(op string, err error) error {
	return chat.E(chat.KindServer, op, fmt.Errorf("malformed response: %w", err))
}
