package attachment

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fluxmail/imapstep/model"
	"github.com/fluxmail/imapstep/state"
)

func multipartMessage(filename string) []byte {
	lines := []string{
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: monthly report",
		"MIME-Version: 1.0",
		"Content-Type: multipart/mixed; boundary=BOUNDARY",
		"",
		"--BOUNDARY",
		"Content-Type: text/plain",
		"",
		"Report attached.",
		"--BOUNDARY",
		"Content-Type: application/pdf",
		`Content-Disposition: attachment; filename="` + filename + `"`,
		"",
		"%PDF-1.4 fake payload",
		"--BOUNDARY--",
		"",
	}
	return []byte(strings.Join(lines, "\r\n"))
}

func TestExtract(t *testing.T) {
	parts := Extract(multipartMessage("report.pdf"))
	if len(parts) != 1 {
		t.Fatalf("Expected 1 attachment, got %d", len(parts))
	}

	part := parts[0]
	if part.Filename != "report.pdf" {
		t.Errorf("Filename = %q, want %q", part.Filename, "report.pdf")
	}
	if part.MIMEType != "application/pdf" {
		t.Errorf("MIMEType = %q, want %q", part.MIMEType, "application/pdf")
	}
	if !strings.Contains(string(part.Content), "%PDF-1.4") {
		t.Errorf("Unexpected content: %q", part.Content)
	}
}

func TestExtract_PlainMessage(t *testing.T) {
	raw := []byte("From: a@example.com\r\nSubject: plain\r\n\r\njust text\r\n")
	if parts := Extract(raw); len(parts) != 0 {
		t.Errorf("Expected no attachments, got %d", len(parts))
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	if parts := Extract(nil); parts != nil {
		t.Errorf("Expected nil, got %v", parts)
	}
}

func TestSaver_WritesAndDeduplicates(t *testing.T) {
	dir := t.TempDir()
	saver, err := NewSaver(dir, state.NewMemoryTracker(), nil)
	if err != nil {
		t.Fatalf("NewSaver() error = %v", err)
	}

	msg := model.Message{UID: 42, Raw: multipartMessage("report.pdf")}

	records, err := saver.Save(msg)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].Skipped {
		t.Error("First save should not be skipped")
	}
	if records[0].Path == "" {
		t.Fatal("Expected a written path")
	}
	if _, err := os.Stat(records[0].Path); err != nil {
		t.Fatalf("Attachment file missing: %v", err)
	}
	if got := filepath.Base(records[0].Path); got != "42-0-report.pdf" {
		t.Errorf("Unexpected file name %q", got)
	}

	// Same content again: the manifest must report it as already done.
	again, err := saver.Save(model.Message{UID: 43, Raw: multipartMessage("report.pdf")})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(again) != 1 || !again[0].Skipped {
		t.Errorf("Expected a skipped record, got %+v", again)
	}
}

func TestSaver_NoAttachments(t *testing.T) {
	saver, err := NewSaver(t.TempDir(), state.NewMemoryTracker(), nil)
	if err != nil {
		t.Fatalf("NewSaver() error = %v", err)
	}

	records, err := saver.Save(model.Message{UID: 1, Raw: []byte("Subject: x\r\n\r\nplain")})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
}

func TestSaver_HostileFilenameStaysInDir(t *testing.T) {
	dir := t.TempDir()
	saver, err := NewSaver(dir, state.NewMemoryTracker(), nil)
	if err != nil {
		t.Fatalf("NewSaver() error = %v", err)
	}

	msg := model.Message{UID: 7, Raw: multipartMessage("../../evil.sh")}
	records, err := saver.Save(msg)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}

	rel, err := filepath.Rel(dir, records[0].Path)
	if err != nil || strings.HasPrefix(rel, "..") {
		t.Errorf("Attachment escaped download dir: %q", records[0].Path)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"report.pdf", "report.pdf"},
		{"  spaced.txt  ", "spaced.txt"},
		{"../../evil.sh", "evil.sh"},
		{"drive:name.doc", "drive_name.doc"},
		{"bad\x00name", "badname"},
		{".", ""},
	}

	for _, tt := range tests {
		if got := sanitizeFilename(tt.input); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
