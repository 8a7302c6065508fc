package imap

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/fluxmail/imapstep/model"
)

// FetchMode selects how much of each message a stream fetch pulls down.
type FetchMode int

const (
	// FetchHeaders retrieves envelope data plus the raw header section.
	FetchHeaders FetchMode = iota
	// FetchFull additionally retrieves the complete raw message.
	FetchFull
)

// Copy copies the messages in set to the destination mailbox and returns
// the number of UIDs the server reported copied.
func (s *Session) Copy(set imapv2.UIDSet, dest string) (int, error) {
	if err := s.requireSelected(); err != nil {
		return 0, err
	}

	data, err := s.client.Copy(set, dest).Wait()
	if err != nil {
		return 0, fmt.Errorf("copy to %s: %w", dest, err)
	}

	copied := countUIDs(set)
	if data != nil && len(data.DestUIDs) > 0 {
		copied = countUIDs(data.DestUIDs)
	}
	if s.logger != nil {
		s.logger.Debug("messages copied", "dest", dest, "count", copied)
	}
	return copied, nil
}

// Move moves the messages in set to the destination mailbox.
func (s *Session) Move(set imapv2.UIDSet, dest string) error {
	if err := s.requireSelected(); err != nil {
		return err
	}

	if _, err := s.client.Move(set, dest).Wait(); err != nil {
		return fmt.Errorf("move to %s: %w", dest, err)
	}
	if s.logger != nil {
		s.logger.Debug("messages moved", "dest", dest)
	}
	return nil
}

// StoreFlags adds, removes, or replaces flags on the messages in set.
func (s *Session) StoreFlags(set imapv2.UIDSet, op imapv2.StoreFlagsOp, flags []imapv2.Flag) error {
	if err := s.requireSelected(); err != nil {
		return err
	}

	cmd := s.client.Store(set, &imapv2.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  flags,
	}, nil)
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("store flags: %w", err)
	}
	return nil
}

// Delete marks the messages in set as deleted and, when expunge is true,
// expunges the mailbox afterwards.
func (s *Session) Delete(set imapv2.UIDSet, expunge bool) error {
	if err := s.StoreFlags(set, imapv2.StoreFlagsAdd, []imapv2.Flag{imapv2.FlagDeleted}); err != nil {
		return err
	}
	if !expunge {
		return nil
	}

	if _, err := s.client.Expunge().Collect(); err != nil {
		return fmt.Errorf("expunge: %w", err)
	}
	if s.logger != nil {
		s.logger.Debug("mailbox expunged", "mailbox", s.selected)
	}
	return nil
}

// Stream fetches the messages in uids one by one and sends them as
// envelopes on out. A per-message decode problem becomes an error envelope;
// only transport-level failures abort the stream. The caller owns and
// closes out.
func (s *Session) Stream(ctx context.Context, uids []imapv2.UID, mode FetchMode, out chan<- model.Envelope) error {
	if err := s.requireSelected(); err != nil {
		return err
	}
	if len(uids) == 0 {
		return nil
	}

	headerSection := &imapv2.FetchItemBodySection{
		Specifier: imapv2.PartSpecifierHeader,
		Peek:      true,
	}
	fullSection := &imapv2.FetchItemBodySection{
		Peek: true,
	}

	fetchOpts := &imapv2.FetchOptions{
		Envelope:     true,
		Flags:        true,
		UID:          true,
		RFC822Size:   true,
		InternalDate: true,
		BodySection:  []*imapv2.FetchItemBodySection{headerSection},
	}
	if mode == FetchFull {
		fetchOpts.BodySection = append(fetchOpts.BodySection, fullSection)
	}

	fetchCmd := s.client.Fetch(imapv2.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw := fetchCmd.Next()
		if raw == nil {
			break
		}

		buf, err := raw.Collect()
		if err != nil {
			if sendErr := emit(ctx, out, model.Envelope{Err: fmt.Errorf("collect message: %w", err)}); sendErr != nil {
				return sendErr
			}
			continue
		}

		msg := s.messageFromBuffer(buf, headerSection)
		if mode == FetchFull {
			msg.Raw = buf.FindBodySection(fullSection)
		}

		if err := emit(ctx, out, model.Envelope{Message: msg}); err != nil {
			return err
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	return nil
}

func emit(ctx context.Context, out chan<- model.Envelope, env model.Envelope) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- env:
		return nil
	}
}

// messageFromBuffer maps the library's fetch buffer onto the output record,
// extracting the raw Date header verbatim for downstream normalization.
func (s *Session) messageFromBuffer(buf *imapclient.FetchMessageBuffer, headerSection *imapv2.FetchItemBodySection) model.Message {
	msg := model.Message{
		UID:          uint32(buf.UID),
		Mailbox:      s.selected,
		Size:         buf.RFC822Size,
		InternalDate: buf.InternalDate,
		Header:       buf.FindBodySection(headerSection),
	}

	if buf.Envelope != nil {
		msg.MessageID = buf.Envelope.MessageID
		msg.Subject = buf.Envelope.Subject

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				msg.From = from.Name
			} else {
				msg.From = from.Addr()
			}
		}
		for _, to := range buf.Envelope.To {
			msg.To = append(msg.To, to.Addr())
		}
	}

	for _, flag := range buf.Flags {
		msg.Flags = append(msg.Flags, string(flag))
	}

	msg.DateRaw = rawDateHeader(msg.Header)
	return msg
}

// rawDateHeader pulls the Date field text out of a raw header section. The
// value is kept byte-for-byte; normalization happens later and must be able
// to see the server's exact output.
func rawDateHeader(header []byte) string {
	if len(header) == 0 {
		return ""
	}

	trimmed := bytes.TrimRight(header, "\r\n")
	buf := make([]byte, 0, len(trimmed)+4)
	buf = append(buf, trimmed...)
	buf = append(buf, "\r\n\r\n"...)

	parsed, err := mail.ReadMessage(bytes.NewReader(buf))
	if err != nil {
		return ""
	}
	return parsed.Header.Get("Date")
}

func countUIDs(set imapv2.UIDSet) int {
	total := 0
	for _, r := range set {
		total += int(r.Stop-r.Start) + 1
	}
	return total
}
