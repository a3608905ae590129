package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careerlink/answer-stream/internal/stream/model"
	"github.com/careerlink/answer-stream/internal/stream/repo"
)

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	m := NewManager(repo.NewMemoryTranscriptRepository(time.Minute), model.HistoryConfig{MaxTurns: 2})

	for i := 1; i <= 3; i++ {
		require.NoError(t, m.RecordTurn(ctx, "s1", model.Turn{
			Query:  fmt.Sprintf("q%d", i),
			Answer: fmt.Sprintf("a%d", i),
		}))
	}

	turns, err := m.Recent(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []model.Turn{{Query: "q2", Answer: "a2"}, {Query: "q3", Answer: "a3"}}, turns)

	require.NoError(t, m.Forget(ctx, "s1"))
	turns, err = m.Recent(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestRecordTurnWithoutSessionIsNoop(t *testing.T) {
	ctx := context.Background()
	r := repo.NewMemoryTranscriptRepository(time.Minute)
	m := NewManager(r, model.HistoryConfig{MaxTurns: 5})

	require.NoError(t, m.RecordTurn(ctx, " ", model.Turn{Query: "q", Answer: "a"}))
	turns, err := m.Recent(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, turns)
}

func TestPairTurnsToleratesGaps(t *testing.T) {
	msgs := []*schema.Message{
		schema.UserMessage("unanswered"),
		schema.UserMessage("q"),
		nil,
		schema.AssistantMessage("a", nil),
		schema.AssistantMessage("orphan", nil),
	}
	assert.Equal(t, []model.Turn{
		{Query: "unanswered"},
		{Query: "q", Answer: "a"},
		{Answer: "orphan"},
	}, pairTurns(msgs))
}

type failingRepo struct{ model.TranscriptRepository }

func (failingRepo) AddMessage(context.Context, string, *schema.Message) error {
	return errors.New("store down")
}

func TestRecordTurnPropagatesStoreError(t *testing.T) {
	m := NewManager(failingRepo{}, model.HistoryConfig{MaxTurns: 5})
	err := m.RecordTurn(context.Background(), "s1", model.Turn{Query: "q"})
	assert.EqualError(t, err, "store down")
}
