// Package reply talks to the external AI webhook that answers tax questions.
//
// A question is sent as a single JSON POST. The webhook answers with either an
// object or an array of objects whose "message" field is a string or a list
// of strings. The text is normalized to Markdown before it is returned.
// There is no retry: callers decide what to show on failure.
package reply

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Replier produces an assistant answer for a user question.
type Replier interface {
	Ask(ctx context.Context, text, conversationID, userID string) (string, error)
}

// Kind classifies a reply failure.
type Kind int

const (
	Unavailable Kind = iota + 1
	MalformedResponse
)

func (k Kind) String() string {
	switch k {
	case Unavailable:
		return "unavailable"
	case MalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// Error is returned by Client.Ask.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "reply: " + e.Kind.String()
	}
	return fmt.Sprintf("reply: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches ErrUnavailable and ErrMalformedResponse by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrUnavailable       = &Error{Kind: Unavailable}
	ErrMalformedResponse = &Error{Kind: MalformedResponse}
)

// maxBody bounds how much of a webhook response is read.
const maxBody = 4 << 20

type request struct {
	Message   string `json:"message"`
	ChatID    string `json:"chat_id"`
	UserID    string `json:"user_id"`
	Timestamp string `json:"timestamp"`
}

// Client posts questions to the webhook.
type Client struct {
	URL  string
	HTTP *http.Client
	Now  func() time.Time
}

// NewClient returns a Client whose HTTP client times out after timeout.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{URL: url, HTTP: &http.Client{Timeout: timeout}}
}

func (c *Client) tracer() trace.Tracer { return otel.Tracer("reply/Client") }

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Ask sends text on behalf of userID in conversationID and returns the
// formatted answer.
func (c *Client) Ask(ctx context.Context, text, conversationID, userID string) (answer string, err error) {
	ctx, span := c.tracer().Start(ctx, "Ask",
		trace.WithAttributes(
			attribute.String("chat.id", conversationID),
			attribute.Int("message.len", len(text)),
		))
	start := time.Now()
	defer func() {
		observe(err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	body, err := json.Marshal(request{
		Message:   text,
		ChatID:    conversationID,
		UserID:    userID,
		Timestamp: c.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", &Error{Kind: MalformedResponse, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: Unavailable, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("chat_id", conversationID).Msg("reply webhook unreachable")
		return "", &Error{Kind: Unavailable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return "", &Error{Kind: Unavailable, Err: fmt.Errorf("webhook status %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", &Error{Kind: Unavailable, Err: err}
	}
	msg, err := Normalize(raw)
	if err != nil {
		return "", &Error{Kind: MalformedResponse, Err: err}
	}
	return Format(msg), nil
}

// Normalize extracts the message text from a webhook payload.
func Normalize(raw []byte) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	if arr, ok := v.([]any); ok {
		if len(arr) == 0 {
			return "", errors.New("empty response array")
		}
		v = arr[0]
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return "", errors.New("response is not an object")
	}

	switch m := obj["message"].(type) {
	case string:
		if m == "" {
			return "", errors.New("empty message")
		}
		return m, nil
	case []any:
		parts := make([]string, 0, len(m))
		for _, p := range m {
			s, ok := p.(string)
			if !ok {
				return "", errors.New("message array holds a non-string")
			}
			parts = append(parts, s)
		}
		if len(parts) == 0 {
			return "", errors.New("empty message")
		}
		return joinParts(parts), nil
	case nil:
		return "", errors.New("missing message")
	default:
		return "", errors.New("message is not text")
	}
}

func joinParts(parts []string) string {
	var b bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p)
	}
	return b.String()
}
