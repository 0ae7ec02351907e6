package openrouter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/forPelevin/tapalign/internal/types"
)

const (
	DefaultModel = "openai/gpt-4.1"

	requestTimeout = 90 * time.Second
	maxAttempts    = 3
)

const labelPrompt = "Who touches the screen: the person on the left, the person on the right, or neither? " +
	"Answer on the first line with exactly one word: left, right or neither. " +
	"On the second line explain what you see."

type Adapter struct {
	key     string
	model   string
	baseURL string
	client  *http.Client
	backoff time.Duration
}

func New(apiKey, model, baseURL string) *Adapter {
	if model == "" {
		model = DefaultModel
	}
	return &Adapter{
		key:     apiKey,
		model:   model,
		baseURL: normalizeBaseURL(baseURL),
		client:  &http.Client{Timeout: 5 * time.Minute},
		backoff: 2 * time.Second,
	}
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("openrouter status %d: %s", e.code, e.body)
}

// Label sends one frame to the vision model. Transport errors, rate limits
// and server errors are retried with a linear backoff.
func (a *Adapter) Label(ctx context.Context, image []byte, mime string) (types.Label, string, error) {
	if len(image) == 0 {
		return "", "", errors.New("openrouter: empty image")
	}
	if mime == "" {
		mime = "image/jpeg"
	}
	body, err := json.Marshal(a.payload(image, mime))
	if err != nil {
		return "", "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		content, err := a.complete(ctx, body)
		if err == nil {
			label, explanation := ParseAnswer(content)
			return label, explanation, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil || attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-time.After(time.Duration(attempt) * a.backoff):
		}
	}
	return "", "", lastErr
}

func (a *Adapter) payload(image []byte, mime string) map[string]any {
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
	return map[string]any{
		"model":  a.model,
		"stream": false,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": labelPrompt},
					{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
				},
			},
		},
	}
}

func (a *Adapter) complete(ctx context.Context, body []byte) (string, error) {
	url := a.baseURL + "/api/v1/chat/completions"

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("openrouter timeout after %s (model=%s)", requestTimeout, a.model)
		}
		return "", fmt.Errorf("openrouter request: %s", redactSecrets(err.Error(), a.key))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return "", &statusError{code: resp.StatusCode, body: "read body failed: " + readErr.Error()}
		}
		return "", &statusError{code: resp.StatusCode, body: truncate(redactSecrets(string(rb), a.key), 400)}
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("openrouter decode: %w", err)
	}
	if len(raw.Choices) == 0 {
		return "", errors.New("openrouter: no choices in response")
	}
	return messageContentToString(raw.Choices[0].Message.Content)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return !errors.Is(err, context.Canceled)
}

func messageContentToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return "", errors.New("openrouter: empty content")
		}
		return x, nil
	case []any:
		// Some providers return an array of {type,text} parts.
		var b strings.Builder
		for _, it := range x {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
		s := b.String()
		if strings.TrimSpace(s) == "" {
			return "", errors.New("openrouter: empty content")
		}
		return s, nil
	default:
		return "", fmt.Errorf("openrouter: unexpected content type %T", v)
	}
}

var (
	reFence = regexp.MustCompile("(?m)^```[a-zA-Z]*\\s*$")
	reWord  = regexp.MustCompile(`[a-z]+`)
)

// ParseAnswer splits a model reply into the label (first non-empty line) and
// the explanation (everything after it). The label is canonicalized when the
// first line clearly names one side; otherwise it is returned as written.
func ParseAnswer(content string) (types.Label, string) {
	content = reFence.ReplaceAllString(content, "")
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i == len(lines) {
		return "", ""
	}
	first := strings.TrimSpace(lines[i])
	explanation := strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
	return canonicalLabel(first), explanation
}

func canonicalLabel(line string) types.Label {
	var left, right, neither bool
	for _, w := range reWord.FindAllString(strings.ToLower(line), -1) {
		switch w {
		case "left":
			left = true
		case "right":
			right = true
		case "neither", "none", "nobody":
			neither = true
		}
	}
	switch {
	case neither && !left && !right:
		return types.LabelNeither
	case left && !right && !neither:
		return types.LabelLeft
	case right && !left && !neither:
		return types.LabelRight
	default:
		return types.Label(strings.Trim(line, " *_`.:"))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
