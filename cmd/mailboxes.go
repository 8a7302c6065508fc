package cmd

import (
	"github.com/spf13/cobra"
)

func newMailboxesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mailboxes",
		Short: "List every mailbox of the account",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			infos, err := session.ListMailboxes()
			if err != nil {
				return err
			}

			for _, info := range infos {
				if err := s.writer.Emit(info); err != nil {
					return err
				}
			}

			s.logger.Info("mailboxes listed", "count", len(infos))
			return nil
		},
	}
}
