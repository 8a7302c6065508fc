package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCopyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy messages to another mailbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCopyMove(cmd, false)
		},
	}
	addSelectorFlags(cmd)
	cmd.Flags().String("dest", "", "Destination mailbox")
	_ = cmd.MarkFlagRequired("dest")
	return cmd
}

func newMoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move",
		Short: "Move messages to another mailbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCopyMove(cmd, true)
		},
	}
	addSelectorFlags(cmd)
	cmd.Flags().String("dest", "", "Destination mailbox")
	_ = cmd.MarkFlagRequired("dest")
	return cmd
}

func runCopyMove(cmd *cobra.Command, move bool) error {
	dest, err := cmd.Flags().GetString("dest")
	if err != nil {
		return err
	}
	if dest == "" {
		return fmt.Errorf("--dest must not be empty")
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

	if move {
		if err := session.Move(set, dest); err != nil {
			return err
		}
		s.logger.Info("messages moved", "from", s.cfg.Mailbox, "to", dest, "uids", set.String())
		return nil
	}

	copied, err := session.Copy(set, dest)
	if err != nil {
		return err
	}
	s.logger.Info("messages copied", "from", s.cfg.Mailbox, "to", dest, "count", copied)
	return nil
}
