package cmd

import (
	"context"
	"fmt"
	"time"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/spf13/cobra"

	"github.com/fluxmail/imapstep/emaildate"
	"github.com/fluxmail/imapstep/imap"
	"github.com/fluxmail/imapstep/progress"
	"github.com/fluxmail/imapstep/runner"
	"github.com/fluxmail/imapstep/stats"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List messages in a mailbox, with Date headers normalized",
		RunE:  runList,
	}

	flags := cmd.Flags()
	flags.String("since", "", "Only messages sent on or after this date (any recognized date format)")
	flags.String("before", "", "Only messages sent before this date")
	flags.String("from", "", "Only messages whose From header contains this text")
	flags.String("subject", "", "Only messages whose Subject header contains this text")
	flags.Bool("unseen", false, "Only messages without the \\Seen flag")
	flags.Int("limit", 0, "Maximum number of messages, newest first (0 = all)")

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
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

	criteria, err := searchCriteria(cmd)
	if err != nil {
		return err
	}

	uids, err := session.SearchUIDs(criteria)
	if err != nil {
		return err
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	if len(uids) == 0 {
		s.logger.Info("no messages matched", "mailbox", s.cfg.Mailbox)
		return nil
	}

	r, err := runner.New(s.cfg, s.logger)
	if err != nil {
		return err
	}
	stats.NewReporter(r, s.logger)

	bar := progress.New("Listing messages", len(uids), s.cfg.LogLevel)
	progress.NewReporter(r, bar, s.logger)
	defer bar.Stop()

	r.AddStage("fetch", func(ctx context.Context) error {
		defer r.CloseFetched()
		return session.Stream(ctx, uids, imap.FetchHeaders, r.FetchedWriter())
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
				if err := s.writer.Emit(msg); err != nil {
					return err
				}
				r.EmitEvent(stats.Event{Stage: stats.StageSink, Type: stats.EventTypeEmitted, UID: msg.UID, MessageID: msg.MessageID})
			}
		}
	})

	return r.Start()
}

// searchCriteria builds the server-side SEARCH from the list flags. The
// date flags accept anything the normalizer recognizes, so a workflow can
// feed a previous step's output straight back in.
func searchCriteria(cmd *cobra.Command) (*imapv2.SearchCriteria, error) {
	flags := cmd.Flags()
	criteria := &imapv2.SearchCriteria{}

	if since, err := flags.GetString("since"); err != nil {
		return nil, err
	} else if since != "" {
		t, err := parseDateFlag(since)
		if err != nil {
			return nil, fmt.Errorf("--since: %w", err)
		}
		criteria.SentSince = t
	}

	if before, err := flags.GetString("before"); err != nil {
		return nil, err
	} else if before != "" {
		t, err := parseDateFlag(before)
		if err != nil {
			return nil, fmt.Errorf("--before: %w", err)
		}
		criteria.SentBefore = t
	}

	if from, err := flags.GetString("from"); err != nil {
		return nil, err
	} else if from != "" {
		criteria.Header = append(criteria.Header, imapv2.SearchCriteriaHeaderField{Key: "From", Value: from})
	}

	if subject, err := flags.GetString("subject"); err != nil {
		return nil, err
	} else if subject != "" {
		criteria.Header = append(criteria.Header, imapv2.SearchCriteriaHeaderField{Key: "Subject", Value: subject})
	}

	if unseen, err := flags.GetBool("unseen"); err != nil {
		return nil, err
	} else if unseen {
		criteria.NotFlag = append(criteria.NotFlag, imapv2.FlagSeen)
	}

	return criteria, nil
}

func parseDateFlag(value string) (time.Time, error) {
	if t, ok := emaildate.ParseTime(value); ok {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}
