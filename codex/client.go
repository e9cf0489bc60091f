// Package codex implements the subscription-authenticated codex responses
// gateway: OAuth credentials from the external login flow, transparently
// refreshed, and a streaming SSE protocol whose tool calls arrive fragmented
// across many small delta events.
package codex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"codexchat/core"
)

const (
	defaultBaseURL    = "https://chatgpt.com/backend-api"
	responsesPath     = "/codex/responses"
	requestTimeout    = 120 * time.Second
	errorBodyMaxBytes = 1024
)

// Model is a long-lived client for one gateway model. It consults the
// credential store once per call and shares no per-response state: every call
// builds its own frame buffer and tool-call accumulator.
type Model struct {
	model   string
	baseURL string
	creds   CredentialStore
}

func NewModel(model string, creds CredentialStore) *Model {
	return &Model{
		model:   model,
		baseURL: defaultBaseURL,
		creds:   creds,
	}
}

// SetBaseURL overrides the gateway base URL, for tests and proxies.
func (m *Model) SetBaseURL(url string) {
	m.baseURL = url
}

// WarmCredentials checks the stored credential against the relaxed idle
// margin, refreshing it ahead of time. Long-lived callers invoke this between
// turns so the stricter per-call check rarely has to block on the token
// endpoint.
func (m *Model) WarmCredentials(ctx context.Context) error {
	_, err := m.creds.Obtain(ctx, RefreshMarginIdle)
	return err
}

// newRequest translates the history, builds the request body, and attaches
// the freshly obtained credential. The returned cancel func bounds the whole
// exchange at 120s; the caller must invoke it once the body is consumed.
func (m *Model) newRequest(
	ctx context.Context,
	msgs []core.Message,
	tools []core.Tool,
) (*http.Request, context.CancelFunc, error) {
	cred, err := m.creds.Obtain(ctx, RefreshMarginCall)
	if err != nil {
		return nil, nil, err
	}

	instructions, items := translate(msgs)
	body := buildRequest(m.model, instructions, items, fromCoreTools(tools))

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("codex: marshalling request body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)

	req, err := http.NewRequestWithContext(ctx, "POST", m.baseURL+responsesPath, bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, nil, err
	}

	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if cred.AccountID != "" {
		req.Header.Set("chatgpt-account-id", cred.AccountID)
	}

	return req, cancel, nil
}

// do performs the exchange and classifies failures before any event parsing:
// a non-success status or connection failure is a TransportError, an elapsed
// deadline a TimeoutError.
func (m *Model) do(client *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, wrapTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyMaxBytes))
		return nil, &TransportError{Status: resp.StatusCode, Body: string(excerpt)}
	}

	return resp, nil
}

func wrapTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TimeoutError{Err: err}
	}
	return &TransportError{Err: err}
}

// Respond is the buffered call shape: it reads the entire event stream to
// completion and returns the aggregated response.
func (m *Model) Respond(
	ctx context.Context,
	client *http.Client,
	msgs []core.Message,
	tools []core.Tool,
) (*core.Response, error) {
	req, cancel, err := m.newRequest(ctx, msgs, tools)
	if err != nil {
		return nil, err
	}
	defer cancel()

	resp, err := m.do(client, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapTransport(err)
	}

	var frames frameBuffer
	payloads := frames.feed(raw)
	payloads = append(payloads, frames.finish()...)

	asm := newAssembler()
	var final *core.Response
	for _, payload := range payloads {
		events, err := asm.apply(payload)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			if ev.Type == core.EvResp {
				r := ev.Response
				final = &r
			}
		}
	}

	if final == nil {
		return nil, &TransportError{Err: errors.New("stream ended without a completed response")}
	}
	return final, nil
}

// OpenStream is the streaming call shape. The returned stream can be pulled
// with Recv or pushed into a channel with Consume; dropping it only requires
// Close, which abandons the underlying connection.
func (m *Model) OpenStream(
	ctx context.Context,
	client *http.Client,
	msgs []core.Message,
	tools []core.Tool,
) (core.ResponseStream, error) {
	req, cancel, err := m.newRequest(ctx, msgs, tools)
	if err != nil {
		return nil, err
	}

	resp, err := m.do(client, req)
	if err != nil {
		cancel()
		return nil, err
	}

	return &Stream{
		body:   resp.Body,
		cancel: cancel,
		asm:    newAssembler(),
		chunk:  make([]byte, 4096),
	}, nil
}
