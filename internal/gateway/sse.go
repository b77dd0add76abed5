package gateway

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

const maxFrameSize = 1 << 20

// sseFrame is one dispatched server-sent event.
type sseFrame struct {
	event string
	data  []byte
}

// sseReader splits a text/event-stream body into frames.
type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxFrameSize)
	return &sseReader{scanner: scanner}
}

// Next returns the next frame, or io.EOF when the body ends.
func (r *sseReader) Next() (sseFrame, error) {
	var (
		frame   sseFrame
		data    [][]byte
		pending bool
	)
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if pending {
				frame.data = bytes.Join(data, []byte("\n"))
				return frame, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			frame.event = value
			pending = true
		case "data":
			data = append(data, []byte(value))
			pending = true
		}
	}
	if err := r.scanner.Err(); err != nil {
		return sseFrame{}, err
	}
	if pending {
		frame.data = bytes.Join(data, []byte("\n"))
		return frame, nil
	}
	return sseFrame{}, io.EOF
}
