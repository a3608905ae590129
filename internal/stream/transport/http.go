package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	errx "github.com/careerlink/answer-stream/internal/core/error"
	"github.com/careerlink/answer-stream/internal/stream/decoder"
	"github.com/careerlink/answer-stream/internal/stream/model"
	logx "github.com/careerlink/answer-stream/pkg/logger"
)

const maxErrorBody = 64 << 10

// HTTPTransport opens answer streams with a POST that returns text/event-stream.
type HTTPTransport struct {
	endpoint string
	token    string
	buffer   int
	client   *http.Client
}

// NewHTTPTransport validates the configuration and builds a transport.
func NewHTTPTransport(cfg model.TransportConfig) (*HTTPTransport, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("answer api base url is empty")
	}
	path := cfg.StreamPath
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 64
	}

	dialer := &net.Dialer{Timeout: cfg.DialTimeout}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = dialer.DialContext

	return &HTTPTransport{
		endpoint: base + path,
		token:    cfg.Token,
		buffer:   buffer,
		// no client timeout: a session stays open until the server finishes
		client: &http.Client{Transport: tr},
	}, nil
}

// Open sends the query and returns a reader of decoded events. The writer side
// closes when the body ends, ctx is cancelled, or the reader is closed.
func (t *HTTPTransport) Open(ctx context.Context, req model.StreamRequest) (*schema.StreamReader[model.Event], error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal stream request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("X-Request-ID", requestID)
	if t.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		logx.Error().Err(err).Str("request_id", requestID).Msg("failed to open answer stream")
		return nil, errx.WrapTransport(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logx.Warn().Int("status", resp.StatusCode).Str("request_id", requestID).Msg("answer stream rejected")
		return nil, errx.FromHTTPStatus(resp.StatusCode, errorMessage(raw))
	}
	if ct := strings.ToLower(resp.Header.Get("Content-Type")); ct != "" && !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		return nil, errx.New(nil, http.StatusBadGateway, fmt.Sprintf("unexpected content type %q", ct))
	}

	logx.Debug().Str("request_id", requestID).Str("session_id", req.SessionID).Msg("answer stream opened")

	sr, sw := schema.Pipe[model.Event](t.buffer)
	go func() {
		defer resp.Body.Close()
		defer sw.Close()

		err := decoder.Decode(resp.Body, func(ev model.Event) bool {
			return !sw.Send(ev, nil)
		})
		if err != nil && ctx.Err() == nil {
			logx.Warn().Err(err).Str("request_id", requestID).Msg("answer stream read failed")
			sw.Send(nil, errx.WrapTransport(err))
		}
	}()
	return sr, nil
}

// errorMessage extracts a message from a JSON error body, falling back to the raw text.
func errorMessage(raw []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(raw))
}

var _ model.Transport = (*HTTPTransport)(nil)
