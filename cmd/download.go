package cmd

import (
	"context"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/spf13/cobra"

	"github.com/fluxmail/imapstep/attachment"
	"github.com/fluxmail/imapstep/imap"
	"github.com/fluxmail/imapstep/progress"
	"github.com/fluxmail/imapstep/runner"
	"github.com/fluxmail/imapstep/state"
	"github.com/fluxmail/imapstep/stats"
)

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download message attachments to a local directory",
		RunE:  runDownload,
	}
	addSelectorFlags(cmd)
	cmd.Flags().String("dir", "attachments", "Directory the attachments are written to")
	return cmd
}

func runDownload(cmd *cobra.Command, args []string) error {
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return err
	}

	sel, err := selectorFromFlags(cmd)
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

	uids, err := downloadUIDs(session, sel)
	if err != nil {
		return err
	}
	if len(uids) == 0 {
		s.logger.Info("no messages matched", "mailbox", s.cfg.Mailbox)
		return nil
	}

	manifest, err := state.NewManifest(s.cfg.StateDir, true)
	if err != nil {
		return err
	}
	defer func() {
		_ = manifest.Close()
	}()

	saver, err := attachment.NewSaver(dir, manifest, s.logger)
	if err != nil {
		return err
	}

	r, err := runner.New(s.cfg, s.logger)
	if err != nil {
		return err
	}
	stats.NewReporter(r, s.logger)

	bar := progress.New("Downloading attachments", len(uids), s.cfg.LogLevel)
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

				records, err := saver.Save(msg)
				if err != nil {
					return err
				}

				for _, record := range records {
					if err := s.writer.Emit(record); err != nil {
						return err
					}
					evtType := stats.EventTypeDownloaded
					if record.Skipped {
						evtType = stats.EventTypeSkipped
					}
					r.EmitEvent(stats.Event{Stage: stats.StageSink, Type: evtType, UID: record.UID, MessageID: record.MessageID, Detail: record.Filename})
				}
			}
		}
	})

	if err := r.Start(); err != nil {
		return err
	}
	return manifest.Flush()
}

// downloadUIDs resolves the target set: an explicit selector when one was
// given, otherwise every message in the mailbox.
func downloadUIDs(session *imap.Session, sel imap.Selector) ([]imapv2.UID, error) {
	if sel.UIDSet == "" && sel.MessageID == "" {
		return session.SearchUIDs(nil)
	}

	set, err := session.Resolve(sel)
	if err != nil {
		return nil, err
	}
	return setToUIDs(set), nil
}

func setToUIDs(set imapv2.UIDSet) []imapv2.UID {
	var uids []imapv2.UID
	for _, r := range set {
		for uid := r.Start; uid <= r.Stop; uid++ {
			uids = append(uids, uid)
		}
	}
	return uids
}
