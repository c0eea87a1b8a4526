package ssestream

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestDecoderReadsFrames(t *testing.T) {
	t.Parallel()

	wire := "id: 1\ndata: \n\n" +
		"id: 2\ndata: {\"message\":\"working\"}\n\n"
	decoder := NewDecoder(strings.NewReader(wire))

	first, err := decoder.Next()
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if first.ID != 1 || first.Data != "" {
		t.Fatalf("liveness frame mismatch: got=%+v", first)
	}

	second, err := decoder.Next()
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if second.ID != 2 || second.Data != `{"message":"working"}` {
		t.Fatalf("data frame mismatch: got=%+v", second)
	}

	if _, err := decoder.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("error mismatch: got=%v want=%v", err, io.EOF)
	}
}

func TestDecoderHandlesChunkSplitFrames(t *testing.T) {
	t.Parallel()

	wire := "id: 1\ndata: \n\nid: 2\ndata: {\"progress\":10}\n\n"
	decoder := NewDecoder(iotest.OneByteReader(strings.NewReader(wire)))

	var ids []int64
	for {
		frame, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next() failed: %v", err)
		}
		ids = append(ids, frame.ID)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("frame ids mismatch: got=%v want=[1 2]", ids)
	}
}

func TestDecoderJoinsMultipleDataLines(t *testing.T) {
	t.Parallel()

	wire := "id: 3\ndata: first\ndata: second\n\n"
	decoder := NewDecoder(strings.NewReader(wire))

	frame, err := decoder.Next()
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if frame.Data != "first\nsecond" {
		t.Fatalf("data mismatch: got=%q want=%q", frame.Data, "first\nsecond")
	}
}

func TestDecoderSkipsComments(t *testing.T) {
	t.Parallel()

	wire := ": keepalive\nid: 4\ndata: payload\n\n"
	decoder := NewDecoder(strings.NewReader(wire))

	frame, err := decoder.Next()
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if frame.ID != 4 || frame.Data != "payload" {
		t.Fatalf("frame mismatch: got=%+v", frame)
	}
}

func TestDecoderRejectsMalformedLine(t *testing.T) {
	t.Parallel()

	decoder := NewDecoder(strings.NewReader("garbage without separator\n\n"))
	if _, err := decoder.Next(); err == nil {
		t.Fatalf("expected error for malformed line")
	}
}

func TestDecoderDiscardsIncompleteTrailingFrame(t *testing.T) {
	t.Parallel()

	decoder := NewDecoder(strings.NewReader("id: 9\ndata: partial"))
	if _, err := decoder.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("error mismatch: got=%v want=%v", err, io.EOF)
	}
}
