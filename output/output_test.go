package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fluxmail/imapstep/model"
)

func TestWriter_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, FormatJSON)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	records := []model.Message{
		{UID: 1, Subject: "first", DateParsed: "2025-12-03T07:56:11.000Z"},
		{UID: 2, Subject: "second"},
	}
	for _, r := range records {
		if err := w.Emit(r); err != nil {
			t.Fatalf("Emit() error = %v", err)
		}
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var got model.Message
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("line 1 is not valid JSON: %v", err)
	}
	if got.UID != 1 || got.Subject != "first" || got.DateParsed != "2025-12-03T07:56:11.000Z" {
		t.Errorf("Unexpected record: %+v", got)
	}
}

func TestWriter_JSONOmitsRawPayload(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, FormatJSON)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	msg := model.Message{
		UID:    7,
		Header: []byte("Subject: secret\r\n"),
		Raw:    []byte("Subject: secret\r\n\r\nbody bytes"),
	}
	if err := w.Emit(msg); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	if strings.Contains(buf.String(), "body bytes") {
		t.Error("Raw message bytes must not appear in emitted records")
	}
}

func TestWriter_YAMLDocuments(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, FormatYAML)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	if err := w.Emit(model.Message{UID: 1, Subject: "first"}); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if err := w.Emit(model.Message{UID: 2, Subject: "second"}); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	out := buf.String()
	if got := strings.Count(out, "---\n"); got != 2 {
		t.Errorf("Expected 2 document separators, got %d: %q", got, out)
	}
	if !strings.Contains(out, "subject: first") || !strings.Contains(out, "subject: second") {
		t.Errorf("Missing record content: %q", out)
	}
}

func TestNewWriter_UnsupportedFormat(t *testing.T) {
	if _, err := NewWriter(&bytes.Buffer{}, "xml"); err == nil {
		t.Error("Expected error for unsupported format")
	}
}
