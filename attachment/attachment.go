// Package attachment decodes MIME parts out of raw messages and writes
// attachment payloads to disk. Content is deduplicated by SHA-256 through
// the download manifest, so re-running a download step is idempotent.
package attachment

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/fluxmail/imapstep/model"
	"github.com/fluxmail/imapstep/state"
)

// Part is one decoded attachment payload.
type Part struct {
	Filename string
	MIMEType string
	Content  []byte
}

// Extract walks the MIME structure of a raw message and returns its
// attachment parts. A message that cannot be parsed as MIME simply has no
// attachments; that is not an error.
func Extract(raw []byte) []Part {
	if len(raw) == 0 {
		return nil
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	defer mr.Close()

	var parts []Part
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}

		content, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		filename, _ := header.Filename()
		mimeType, _, _ := header.ContentType()

		parts = append(parts, Part{
			Filename: filename,
			MIMEType: mimeType,
			Content:  content,
		})
	}

	return parts
}

// Saver writes attachment parts under a target directory, consulting the
// manifest to skip content that was already downloaded.
type Saver struct {
	dir      string
	manifest state.Tracker
	logger   *slog.Logger
}

func NewSaver(dir string, manifest state.Tracker, logger *slog.Logger) (*Saver, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("download directory is empty")
	}
	if manifest == nil {
		return nil, fmt.Errorf("manifest must not be nil")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}
	return &Saver{dir: dir, manifest: manifest, logger: logger}, nil
}

// Save writes every attachment of msg and returns one record per part.
// Already-downloaded content is reported with Skipped set instead of being
// rewritten.
func (s *Saver) Save(msg model.Message) ([]model.Attachment, error) {
	parts := Extract(msg.Raw)
	if len(parts) == 0 {
		return nil, nil
	}

	records := make([]model.Attachment, 0, len(parts))
	for i, part := range parts {
		sum := sha256.Sum256(part.Content)
		hash := hex.EncodeToString(sum[:])

		record := model.Attachment{
			UID:       msg.UID,
			MessageID: msg.MessageID,
			Filename:  part.Filename,
			MIMEType:  part.MIMEType,
			Size:      int64(len(part.Content)),
			Hash:      hash,
		}

		if s.manifest.AlreadyDownloaded(hash) {
			record.Skipped = true
			records = append(records, record)
			continue
		}

		path := filepath.Join(s.dir, s.targetName(msg.UID, i, part.Filename))
		if err := os.WriteFile(path, part.Content, 0o644); err != nil {
			return records, fmt.Errorf("write attachment %s: %w", path, err)
		}
		if err := s.manifest.MarkDownloaded(hash, path); err != nil {
			return records, fmt.Errorf("record attachment %s: %w", path, err)
		}

		record.Path = path
		records = append(records, record)

		if s.logger != nil {
			s.logger.Debug("attachment written", "uid", msg.UID, "file", path, "bytes", len(part.Content))
		}
	}

	return records, nil
}

// targetName builds a collision-free on-disk name: the message UID plus the
// part index prefix the sanitized original filename.
func (s *Saver) targetName(uid uint32, index int, filename string) string {
	base := sanitizeFilename(filename)
	if base == "" {
		base = "part.bin"
	}
	return fmt.Sprintf("%d-%d-%s", uid, index, base)
}

// sanitizeFilename strips path separators and control characters so a
// hostile filename header cannot escape the download directory.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20, r == 0x7f:
		case r == '/' || r == '\\' || r == ':':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
