package decoder

import (
	"bytes"
	"strings"
)

// Frame is one dispatched server-sent event before payload decoding.
type Frame struct {
	Event string
	ID    string
	Data  []byte
}

// Framer reassembles SSE frames from arbitrarily split chunks. It is not
// safe for concurrent use.
type Framer struct {
	buf     []byte
	cur     Frame
	hasData bool
}

// Feed consumes a chunk and returns every frame completed by it.
func (f *Framer) Feed(chunk []byte) []Frame {
	f.buf = append(f.buf, chunk...)

	var frames []Frame
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			break
		}
		line := f.buf[:i]
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if fr, ok := f.line(string(line)); ok {
			frames = append(frames, fr)
		}
		f.buf = f.buf[i+1:]
	}
	// compact so a long stream does not pin the whole history
	if len(f.buf) == 0 {
		f.buf = nil
	}
	return frames
}

// Flush dispatches a trailing frame that was not terminated by a blank line.
func (f *Framer) Flush() (Frame, bool) {
	if len(f.buf) > 0 {
		line := strings.TrimSuffix(string(f.buf), "\r")
		f.buf = nil
		if fr, ok := f.line(line); ok {
			return fr, true
		}
	}
	if !f.hasData {
		f.cur = Frame{}
		return Frame{}, false
	}
	return f.dispatch(), true
}

func (f *Framer) line(line string) (Frame, bool) {
	if line == "" {
		if !f.hasData && f.cur.Event == "" {
			return Frame{}, false
		}
		if !f.hasData {
			// an event name without data carries nothing to decode
			f.cur = Frame{}
			return Frame{}, false
		}
		return f.dispatch(), true
	}
	if strings.HasPrefix(line, ":") {
		return Frame{}, false
	}

	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")
	switch field {
	case "event":
		f.cur.Event = value
	case "data":
		if f.hasData {
			f.cur.Data = append(f.cur.Data, '\n')
		}
		f.cur.Data = append(f.cur.Data, value...)
		f.hasData = true
	case "id":
		f.cur.ID = value
	}
	return Frame{}, false
}

func (f *Framer) dispatch() Frame {
	fr := f.cur
	f.cur = Frame{}
	f.hasData = false
	return fr
}
