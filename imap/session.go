// Package imap wraps the go-imap v2 client with the mailbox operations the
// step commands need: listing, fetching, copy/move, flag stores, and
// deletion. Connection lifecycle and protocol work stay inside the library;
// this package only sequences the commands.
package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/fluxmail/imapstep/model"
)

var (
	ErrNoMatch     = errors.New("no message matched the selector")
	ErrNotSelected = errors.New("no mailbox selected")
)

type Options struct {
	Host               string
	Port               int
	Username           string
	Password           string
	UseTLS             bool
	InsecureSkipVerify bool
}

// Session is an authenticated IMAP connection. It is not safe for
// concurrent use; each step command owns one session for its lifetime.
type Session struct {
	opts     Options
	client   *imapclient.Client
	logger   *slog.Logger
	cleanup  func()
	selected string
}

// Dial connects, authenticates, and ties the connection's lifetime to ctx.
func Dial(ctx context.Context, opts Options, logger *slog.Logger) (*Session, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}

	address := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	options := &imapclient.Options{}

	if opts.UseTLS {
		options.TLSConfig = &tls.Config{
			ServerName:         opts.Host,
			InsecureSkipVerify: opts.InsecureSkipVerify,
		}
	}

	var (
		client *imapclient.Client
		err    error
	)

	if opts.UseTLS {
		client, err = imapclient.DialTLS(address, options)
	} else {
		client, err = imapclient.DialInsecure(address, options)
	}
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := client.Login(opts.Username, opts.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("imap login failed: %w", err)
	}

	if logger != nil {
		logger.Debug("imap connection established", "address", address, "user", opts.Username, "tls", opts.UseTLS)
	}

	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})

	session := &Session{
		opts:   opts,
		client: client,
		logger: logger,
	}
	session.cleanup = func() {
		stopClose()
		if ctx.Err() == nil {
			if err := client.Logout().Wait(); err != nil && logger != nil {
				logger.Warn("imap logout failed", "err", err)
			}
		}
		if err := client.Close(); err != nil && logger != nil {
			logger.Debug("imap connection closed", "err", err)
		}
	}

	return session, nil
}

// Close logs out and releases the connection.
func (s *Session) Close() {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}

// Select opens a mailbox; subsequent UID operations run against it.
func (s *Session) Select(mailbox string) (*imapv2.SelectData, error) {
	data, err := s.client.Select(mailbox, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("select mailbox %s: %w", mailbox, err)
	}
	s.selected = mailbox
	if s.logger != nil {
		s.logger.Debug("mailbox selected", "mailbox", mailbox, "messages", data.NumMessages)
	}
	return data, nil
}

// ListMailboxes returns every mailbox the account exposes.
func (s *Session) ListMailboxes() ([]model.MailboxInfo, error) {
	list, err := s.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("list mailboxes: %w", err)
	}

	infos := make([]model.MailboxInfo, 0, len(list))
	for _, data := range list {
		info := model.MailboxInfo{
			Name:      data.Mailbox,
			Delimiter: string(data.Delim),
		}
		for _, attr := range data.Attrs {
			info.Attributes = append(info.Attributes, string(attr))
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (s *Session) requireSelected() error {
	if s.selected == "" {
		return ErrNotSelected
	}
	return nil
}
