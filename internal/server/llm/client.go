// Package llm is the client for the upstream streaming chat completion
// provider. One call opens one streaming completion; the text portion of
// each incremental chunk is forwarded in arrival order on a channel, and a
// failure mid-stream surfaces as a terminal error after whatever fragments
// were already delivered.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const dataPrefix = "data: "

// completionsPath is relative to the configured base URL.
const completionsPath = "/chat/completions"

// Fragment is one incremental piece of generated text, or the stream's
// terminal error. After a Fragment with a non-nil Err, the channel is
// closed; fragments delivered before the error stand.
type Fragment struct {
	Text string
	Err  error
}

// UpstreamError describes a failure reported by or while talking to the
// completion provider.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream error: %s", e.Message)
}

// Client talks to one chat completion provider endpoint. The zero overall
// timeout is deliberate: completion streams are long-lived, and per-request
// cancellation comes from the caller's context.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   0,
			Transport: transport,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// StreamCompletion opens a streaming completion with a two-message
// conversation (system + user) and the given model, authenticated with the
// resolved plaintext credential. It returns an error if the stream cannot
// be opened; otherwise it returns a channel of fragments in strict arrival
// order. Cancelling ctx aborts the upstream call promptly; nothing is
// buffered beyond the chunk currently being forwarded.
func (c *Client) StreamCompletion(ctx context.Context, apiKey, model, systemMessage, userMessage string) (<-chan Fragment, error) {
	body, err := json.Marshal(completionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemMessage},
			{Role: "user", Content: userMessage},
		},
		Stream: true,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readErrorResponse(resp)
	}

	fragments := make(chan Fragment)
	go c.relay(ctx, resp.Body, fragments)
	return fragments, nil
}

// relay parses the SSE body and forwards text deltas until the terminator,
// an error, or cancellation. It owns closing both the body and the channel.
func (c *Client) relay(ctx context.Context, body io.ReadCloser, fragments chan<- Fragment) {
	defer close(fragments)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	// A single data frame can exceed the default token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	done := false
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimPrefix(line, dataPrefix)
		if payload == "[DONE]" {
			done = true
			break
		}

		var chunk completionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// An unparseable frame is a protocol violation, not something
			// to guess at.
			c.deliver(ctx, fragments, Fragment{Err: &UpstreamError{Message: "malformed stream chunk"}})
			return
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			// Chunks carrying no text delta (role preludes, finish markers)
			// are skipped.
			continue
		}

		if !c.deliver(ctx, fragments, Fragment{Text: chunk.Choices[0].Delta.Content}) {
			return
		}
	}

	if ctx.Err() != nil {
		// Caller cancelled; no terminal error is owed to anyone.
		return
	}
	if err := scanner.Err(); err != nil {
		c.deliver(ctx, fragments, Fragment{Err: &UpstreamError{Message: err.Error()}})
		return
	}
	if !done {
		c.deliver(ctx, fragments, Fragment{Err: &UpstreamError{Message: "stream ended unexpectedly"}})
	}
}

// deliver sends a fragment unless the caller has gone away.
func (c *Client) deliver(ctx context.Context, fragments chan<- Fragment, f Fragment) bool {
	select {
	case fragments <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

func readErrorResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return &UpstreamError{StatusCode: resp.StatusCode, Message: envelope.Error.Message}
	}
	return &UpstreamError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
}
