// Package mbox appends fetched messages to a local mbox archive. The
// export step uses it as its sink so a mailbox snapshot can be carried
// offline or re-imported elsewhere.
package mbox

import (
	"bytes"
	"fmt"
	"net/mail"
	"os"
	"strings"
	"time"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/fluxmail/imapstep/model"
)

// Archive writes raw messages to an mbox file in mboxrd framing.
type Archive struct {
	file   *os.File
	writer *mboxlib.Writer
	count  int
}

// OpenArchive creates or truncates the archive at path.
func OpenArchive(path string) (*Archive, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("archive path is empty")
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create archive %s: %w", path, err)
	}

	return &Archive{
		file:   file,
		writer: mboxlib.NewWriter(file),
	}, nil
}

// Append writes one message. The separator line's sender and timestamp come
// from the message itself, falling back to the IMAP internal date and a
// placeholder address when the header is unusable.
func (a *Archive) Append(msg model.Message) error {
	if len(msg.Raw) == 0 {
		return fmt.Errorf("message %d has no body to export", msg.UID)
	}

	from := envelopeSender(msg.Raw)
	date := msg.InternalDate
	if date.IsZero() {
		date = time.Now()
	}

	w, err := a.writer.CreateMessage(from, date)
	if err != nil {
		return fmt.Errorf("create archive entry: %w", err)
	}
	if _, err := w.Write(msg.Raw); err != nil {
		return fmt.Errorf("write archive entry: %w", err)
	}

	a.count++
	return nil
}

// Count returns the number of messages appended so far.
func (a *Archive) Count() int {
	return a.count
}

// Close flushes the mbox framing and closes the file.
func (a *Archive) Close() error {
	var firstErr error
	if err := a.writer.Close(); err != nil {
		firstErr = fmt.Errorf("close archive writer: %w", err)
	}
	if err := a.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close archive file: %w", err)
	}
	return firstErr
}

func envelopeSender(raw []byte) string {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return "MAILER-DAEMON"
	}

	addrs, err := msg.Header.AddressList("From")
	if err != nil || len(addrs) == 0 {
		return "MAILER-DAEMON"
	}
	return addrs[0].Address
}
