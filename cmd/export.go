package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fluxmail/imapstep/imap"
	"github.com/fluxmail/imapstep/mbox"
	"github.com/fluxmail/imapstep/progress"
	"github.com/fluxmail/imapstep/runner"
	"github.com/fluxmail/imapstep/stats"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export raw messages to a local mbox archive",
		RunE:  runExport,
	}

	flags := cmd.Flags()
	flags.String("out", "", "Path of the mbox archive to write")
	_ = cmd.MarkFlagRequired("out")
	flags.Int("limit", 0, "Maximum number of messages, newest first (0 = all)")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	out, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	s, err := setup()
	if err != nil {
		return err
	}
	defer s.close()

	session, err := s.dial(cmd.Context())
	if err != nil {
		return err
	}
	defer session.Close()

	if _, err := session.Select(s.cfg.Mailbox); err != nil {
		return err
	}

	uids, err := session.SearchUIDs(nil)
	if err != nil {
		return err
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}
	if len(uids) == 0 {
		s.logger.Info("no messages to export", "mailbox", s.cfg.Mailbox)
		return nil
	}

	archive, err := mbox.OpenArchive(out)
	if err != nil {
		return err
	}

	r, err := runner.New(s.cfg, s.logger)
	if err != nil {
		_ = archive.Close()
		return err
	}
	stats.NewReporter(r, s.logger)

	bar := progress.New("Exporting messages", len(uids), s.cfg.LogLevel)
	progress.NewReporter(r, bar, s.logger)
	defer bar.Stop()

	r.AddStage("fetch", func(ctx context.Context) error {
		defer r.CloseFetched()
		return session.Stream(ctx, uids, imap.FetchFull, r.FetchedWriter())
	})

	r.AddStage("sink", func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg, ok := <-r.Records():
				if !ok {
					return nil
				}
				if err := archive.Append(msg); err != nil {
					return err
				}
				r.EmitEvent(stats.Event{Stage: stats.StageSink, Type: stats.EventTypeExported, UID: msg.UID, MessageID: msg.MessageID})
			}
		}
	})

	runErr := r.Start()
	closeErr := archive.Close()

	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return closeErr
	}

	s.logger.Info("mailbox exported", "mailbox", s.cfg.Mailbox, "archive", out, "messages", archive.Count())
	return nil
}
