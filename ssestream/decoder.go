package ssestream

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const maxFrameBytes = 1024 * 1024

// Frame is one decoded wire event. Data is the raw payload; the liveness
// frame carries an empty payload.
type Frame struct {
	ID   int64
	Data string
}

// Decoder incrementally parses framed events from a byte stream. Frames may
// arrive split across reads; Next blocks until one full frame (terminated by
// a blank line) is available, and returns io.EOF when the stream ends.
type Decoder struct {
	scanner *bufio.Scanner
}

func NewDecoder(source io.Reader) *Decoder {
	scanner := bufio.NewScanner(source)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameBytes)
	return &Decoder{scanner: scanner}
}

func (d *Decoder) Next() (Frame, error) {
	if d == nil || d.scanner == nil {
		return Frame{}, io.EOF
	}

	var (
		frame     Frame
		dataLines []string
		seenField bool
	)

	for d.scanner.Scan() {
		line := d.scanner.Text()
		line = strings.TrimRight(line, "\r")

		if line == "" {
			if !seenField {
				continue
			}
			frame.Data = strings.Join(dataLines, "\n")
			return frame, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if !found {
			return Frame{}, fmt.Errorf("decode frame: malformed line %q", line)
		}
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "id":
			id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil {
				return Frame{}, fmt.Errorf("decode frame: invalid id %q", value)
			}
			frame.ID = id
		case "data":
			dataLines = append(dataLines, value)
		default:
			// Unknown SSE fields are ignored per the wire contract.
		}
		seenField = true
	}

	if err := d.scanner.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}
