// Package cmd defines the step subcommands. Each one is a self-contained
// workflow step: parameters come in as flags, one IMAP operation runs, and
// structured records go out on stdout.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fluxmail/imapstep/config"
	"github.com/fluxmail/imapstep/imap"
	"github.com/fluxmail/imapstep/output"
)

// Commands returns every step subcommand for registration on the root.
func Commands() []*cobra.Command {
	return []*cobra.Command{
		newMailboxesCmd(),
		newListCmd(),
		newCopyCmd(),
		newMoveCmd(),
		newDeleteCmd(),
		newFlagCmd(),
		newDownloadCmd(),
		newExportCmd(),
	}
}

// step bundles what every subcommand needs after setup.
type step struct {
	cfg     config.Config
	logger  *slog.Logger
	writer  *output.Writer
	cleanup func() error
}

func setup() (*step, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, cleanup, err := setupLogger(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	writer, err := output.NewWriter(os.Stdout, cfg.Format)
	if err != nil {
		_ = cleanup()
		return nil, err
	}

	return &step{cfg: cfg, logger: logger, writer: writer, cleanup: cleanup}, nil
}

func (s *step) close() {
	if s.cleanup != nil {
		_ = s.cleanup()
	}
}

func (s *step) dial(ctx context.Context) (*imap.Session, error) {
	return imap.Dial(ctx, imap.Options{
		Host:               s.cfg.Host,
		Port:               s.cfg.Port,
		Username:           s.cfg.Username,
		Password:           s.cfg.Password,
		UseTLS:             s.cfg.UseTLS,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify,
	}, s.logger)
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("imapstep-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		// Records go to stdout, logs to stderr and the file, so piped
		// output stays machine-readable.
		handler := slog.NewTextHandler(io.MultiWriter(os.Stderr, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stderr, opts)
	return slog.New(handler), cleanup, nil
}

// Selector flags shared by the targeted steps (copy, move, delete, flag,
// download).
func addSelectorFlags(cmd *cobra.Command) {
	cmd.Flags().String("uid", "", `UID set of the target messages, e.g. "7" or "1,3:5"`)
	cmd.Flags().String("message-id", "", "Message-ID header of the target message")
}

func selectorFromFlags(cmd *cobra.Command) (imap.Selector, error) {
	uidSet, err := cmd.Flags().GetString("uid")
	if err != nil {
		return imap.Selector{}, err
	}
	messageID, err := cmd.Flags().GetString("message-id")
	if err != nil {
		return imap.Selector{}, err
	}
	return imap.Selector{UIDSet: uidSet, MessageID: messageID}, nil
}
