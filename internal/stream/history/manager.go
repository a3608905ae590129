package history

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/careerlink/answer-stream/internal/stream/model"
	logx "github.com/careerlink/answer-stream/pkg/logger"
)

type Manager struct {
	transcriptRepo model.TranscriptRepository
	maxTurns       int
}

func NewManager(transcriptRepo model.TranscriptRepository, config model.HistoryConfig) *Manager {
	return &Manager{
		transcriptRepo: transcriptRepo,
		maxTurns:       config.MaxTurns,
	}
}

// RecordTurn saves the query and its final answer as a user/assistant pair.
func (m *Manager) RecordTurn(ctx context.Context, sessionID string, turn model.Turn) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	if err := m.transcriptRepo.AddMessage(ctx, sessionID, schema.UserMessage(turn.Query)); err != nil {
		return err
	}
	if err := m.transcriptRepo.AddMessage(ctx, sessionID, schema.AssistantMessage(turn.Answer, nil)); err != nil {
		return err
	}
	logx.Debug().Str("session_id", sessionID).Int("answer_len", len(turn.Answer)).Msg("turn recorded")
	return nil
}

// Recent returns up to maxTurns of the latest turns of a session, oldest first.
func (m *Manager) Recent(ctx context.Context, sessionID string) ([]model.Turn, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, nil
	}
	t, err := m.transcriptRepo.LoadTranscript(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	turns := pairTurns(t.Messages)
	return trimTail(turns, m.maxTurns), nil
}

// Forget drops the recorded transcript of a session.
func (m *Manager) Forget(ctx context.Context, sessionID string) error {
	return m.transcriptRepo.ClearTranscript(ctx, sessionID)
}

// ====================== Helper function ======================
func pairTurns(messages []*schema.Message) []model.Turn {
	var (
		turns   []model.Turn
		pending *model.Turn
	)
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.User:
			if pending != nil {
				turns = append(turns, *pending)
			}
			pending = &model.Turn{Query: msg.Content}
		case schema.Assistant:
			if pending == nil {
				pending = &model.Turn{}
			}
			pending.Answer = msg.Content
			turns = append(turns, *pending)
			pending = nil
		}
	}
	if pending != nil {
		turns = append(turns, *pending)
	}
	return turns
}

func trimTail(turns []model.Turn, maxTurns int) []model.Turn {
	if maxTurns <= 0 || len(turns) <= maxTurns {
		result := make([]model.Turn, len(turns))
		copy(result, turns)
		return result
	}
	source := turns[len(turns)-maxTurns:]
	result := make([]model.Turn, len(source))
	copy(result, source)
	return result
}
