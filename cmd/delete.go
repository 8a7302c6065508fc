package cmd

import (
	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Mark messages as deleted, optionally expunging the mailbox",
		RunE:  runDelete,
	}
	addSelectorFlags(cmd)
	cmd.Flags().Bool("expunge", false, "Expunge the mailbox after marking")
	return cmd
}

func runDelete(cmd *cobra.Command, args []string) error {
	expunge, err := cmd.Flags().GetBool("expunge")
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

	set, err := session.Resolve(sel)
	if err != nil {
		return err
	}

	if err := session.Delete(set, expunge); err != nil {
		return err
	}

	s.logger.Info("messages deleted", "mailbox", s.cfg.Mailbox, "uids", set.String(), "expunged", expunge)
	return nil
}
