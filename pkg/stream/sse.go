package stream

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Frame is one server-sent event.
type Frame struct {
	Event string
	Data  string
}

const (
	EventResults  = "results"
	EventOverview = "overview"
	EventError    = "error"
	EventDone     = "done"
)

// DefaultMaxFrameSize bounds the bytes one frame may occupy on the wire.
const DefaultMaxFrameSize = 4 << 20

// FrameTooLargeError is returned by the frame reader when a frame exceeds its
// size limit. Event is the frame's name if it was seen before the limit hit.
type FrameTooLargeError struct {
	Event string
	Limit int
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("sse frame exceeds %d bytes", e.Limit)
}

// frameReader splits a text/event-stream body into frames. Comment lines and
// id/retry fields are skipped; multiple data lines are joined with "\n".
type frameReader struct {
	r       *bufio.Reader
	maxSize int
}

func newFrameReader(body io.Reader, maxSize int) *frameReader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &frameReader{r: bufio.NewReaderSize(body, 64*1024), maxSize: maxSize}
}

// readLine reads up to and including '\n' but never buffers more than budget
// bytes.
func (fr *frameReader) readLine(budget int) (string, bool, error) {
	var buf []byte
	for {
		chunk, err := fr.r.ReadSlice('\n')
		if len(buf)+len(chunk) > budget {
			return "", false, nil
		}
		buf = append(buf, chunk...)
		if err == bufio.ErrBufferFull {
			continue
		}
		return string(buf), true, err
	}
}

// Next returns the next complete frame. A trailing frame without the closing
// blank line is still returned before io.EOF.
func (fr *frameReader) Next() (Frame, error) {
	var (
		f       Frame
		data    []string
		hasData bool
		size    int
	)

	for {
		line, ok, err := fr.readLine(fr.maxSize - size)
		if !ok {
			return Frame{}, &FrameTooLargeError{Event: f.Event, Limit: fr.maxSize}
		}
		if err != nil && line == "" {
			if hasData || f.Event != "" {
				f.Data = strings.Join(data, "\n")
				return f, nil
			}
			return Frame{}, err
		}
		size += len(line)
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if !hasData && f.Event == "" {
				size = 0
				continue
			}
			f.Data = strings.Join(data, "\n")
			return f, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			f.Event = value
		case "data":
			data = append(data, value)
			hasData = true
		}

		if err != nil {
			// Last line had no newline terminator.
			f.Data = strings.Join(data, "\n")
			return f, nil
		}
	}
}
