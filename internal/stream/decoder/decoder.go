package decoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/careerlink/answer-stream/internal/stream/model"
	logx "github.com/careerlink/answer-stream/pkg/logger"
)

const readChunkSize = 4096

// ErrUnknownEvent is returned by Parse for event names outside the contract.
var ErrUnknownEvent = errors.New("unknown event")

// Decode reads an SSE body and calls emit for every valid event in arrival
// order. Malformed frames are logged and skipped. Decode stops early when emit
// returns false. A nil error means the body ended.
func Decode(r io.Reader, emit func(model.Event) bool) error {
	var framer Framer
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, fr := range framer.Feed(buf[:n]) {
				if !emitFrame(fr, emit) {
					return nil
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if fr, ok := framer.Flush(); ok {
					emitFrame(fr, emit)
				}
				return nil
			}
			return err
		}
	}
}

func emitFrame(fr Frame, emit func(model.Event) bool) bool {
	ev, err := Parse(fr)
	if err != nil {
		logx.Warn().Err(err).Str("event", fr.Event).Int("bytes", len(fr.Data)).Msg("skipping malformed stream event")
		return true
	}
	return emit(ev)
}

// Parse turns a frame into a typed event.
func Parse(fr Frame) (model.Event, error) {
	data := bytes.TrimSpace(fr.Data)
	name := strings.TrimSpace(fr.Event)
	if name == "" || name == "message" {
		name = eventNameFromPayload(data)
	}

	switch model.EventKind(name) {
	case model.KindSession:
		var ev model.SessionStartedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		if ev.SessionID == "" {
			return nil, errors.New("decode session: missing session_id")
		}
		return ev, nil

	case model.KindStatus:
		return parseStatus(data)

	case model.KindToken:
		return parseToken(data)

	case model.KindSources:
		return parseSources(data)

	case model.KindAgentProgress:
		return parseAgentProgress(data)

	case model.KindComplete:
		return parseComplete(data)

	case model.KindError:
		return parseError(data)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownEvent, name)
}

func eventNameFromPayload(data []byte) string {
	var probe struct {
		Event string `json:"event"`
	}
	if len(data) == 0 || data[0] != '{' {
		return ""
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return ""
	}
	return probe.Event
}

func parseStatus(data []byte) (model.Event, error) {
	var payload struct {
		Step    *model.StatusStep `json:"step"`
		Message *string           `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	if payload.Step == nil || *payload.Step == "" {
		return nil, errors.New("decode status: missing step")
	}
	if payload.Message == nil {
		return nil, errors.New("decode status: missing message")
	}
	return model.StatusEvent{Step: *payload.Step, Message: *payload.Message}, nil
}

func parseToken(data []byte) (model.Event, error) {
	var payload struct {
		Content *string `json:"content"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if payload.Content == nil {
		return nil, errors.New("decode token: missing content")
	}
	return model.TokenEvent{Content: *payload.Content}, nil
}

func parseSources(data []byte) (model.Event, error) {
	if len(data) > 0 && data[0] == '[' {
		var urls []string
		if err := json.Unmarshal(data, &urls); err != nil {
			return nil, fmt.Errorf("decode sources: %w", err)
		}
		return model.SourcesEvent{Sources: urls}, nil
	}
	var ev model.SourcesEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}
	return ev, nil
}

func parseAgentProgress(data []byte) (model.Event, error) {
	var ev model.AgentProgressEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode agent_progress: %w", err)
	}
	if ev.AgentType == "" {
		return nil, errors.New("decode agent_progress: missing agent_type")
	}
	switch ev.Type {
	case model.AgentProgressStart:
	case model.AgentProgressComplete:
		if !ev.Status.Valid() {
			return nil, fmt.Errorf("decode agent_progress: invalid status %q", ev.Status)
		}
	default:
		return nil, fmt.Errorf("decode agent_progress: invalid type %q", ev.Type)
	}
	return ev, nil
}

func parseComplete(data []byte) (model.Event, error) {
	meta := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("decode complete: %w", err)
		}
	}
	ev := model.CompleteEvent{Metadata: meta}
	if raw, ok := meta["session_id"]; ok {
		_ = json.Unmarshal(raw, &ev.SessionID)
	}
	if raw, ok := meta["answer"]; ok {
		_ = json.Unmarshal(raw, &ev.Answer)
	}
	return ev, nil
}

func parseError(data []byte) (model.Event, error) {
	var payload struct {
		Message string          `json:"message"`
		Code    json.RawMessage `json:"code"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode error: %w", err)
	}
	return model.ErrorEvent{Message: payload.Message, Code: flexibleCode(payload.Code)}, nil
}

// flexibleCode accepts "401" and 401 alike.
func flexibleCode(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}
