package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramerSplitsOnBlankLine(t *testing.T) {
	var f Framer
	frames := f.Feed([]byte("event: token\ndata: {\"content\":\"a\"}\n\nevent: token\ndata: {\"content\":\"b\"}\n\n"))
	require.Len(t, frames, 2)
	assert.Equal(t, "token", frames[0].Event)
	assert.Equal(t, `{"content":"a"}`, string(frames[0].Data))
	assert.Equal(t, `{"content":"b"}`, string(frames[1].Data))
}

func TestFramerReassemblesAcrossChunks(t *testing.T) {
	var f Framer
	assert.Empty(t, f.Feed([]byte("even")))
	assert.Empty(t, f.Feed([]byte("t: status\r\nda")))
	assert.Empty(t, f.Feed([]byte("ta: {\"step\":\"searching\"}\r\n")))
	frames := f.Feed([]byte("\r\n"))
	require.Len(t, frames, 1)
	assert.Equal(t, "status", frames[0].Event)
	assert.Equal(t, `{"step":"searching"}`, string(frames[0].Data))
}

func TestFramerJoinsDataLinesAndSkipsComments(t *testing.T) {
	var f Framer
	frames := f.Feed([]byte(": keepalive\nid: 7\ndata: line1\ndata:line2\n\n"))
	require.Len(t, frames, 1)
	assert.Equal(t, "7", frames[0].ID)
	assert.Equal(t, "line1\nline2", string(frames[0].Data))
}

func TestFramerDropsEventWithoutData(t *testing.T) {
	var f Framer
	assert.Empty(t, f.Feed([]byte("event: ping\n\n\n")))
}

func TestFramerFlushTrailingFrame(t *testing.T) {
	var f Framer
	assert.Empty(t, f.Feed([]byte("event: complete\ndata: {}")))
	fr, ok := f.Flush()
	require.True(t, ok)
	assert.Equal(t, "complete", fr.Event)
	assert.Equal(t, "{}", string(fr.Data))

	_, ok = f.Flush()
	assert.False(t, ok)
}

func TestFramerKeepsSplitMultibyteRunes(t *testing.T) {
	payload := []byte("data: {\"content\":\"검색\"}\n\n")
	var f Framer
	var frames []Frame
	for i := range payload {
		frames = append(frames, f.Feed(payload[i:i+1])...)
	}
	require.Len(t, frames, 1)
	assert.Equal(t, `{"content":"검색"}`, string(frames[0].Data))
}
