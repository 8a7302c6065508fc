package cmd

import (
	"fmt"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/spf13/cobra"

	"github.com/fluxmail/imapstep/imap"
)

func newFlagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flag",
		Short: "Add, remove, or replace message flags",
		RunE:  runFlag,
	}
	addSelectorFlags(cmd)
	cmd.Flags().StringArray("add", nil, "Flags to add (seen, answered, flagged, deleted, draft, or a custom keyword)")
	cmd.Flags().StringArray("remove", nil, "Flags to remove")
	cmd.Flags().StringArray("set", nil, "Flags to set, replacing the current ones")
	return cmd
}

func runFlag(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	add, err := flags.GetStringArray("add")
	if err != nil {
		return err
	}
	remove, err := flags.GetStringArray("remove")
	if err != nil {
		return err
	}
	replace, err := flags.GetStringArray("set")
	if err != nil {
		return err
	}

	var (
		op    imapv2.StoreFlagsOp
		names []string
	)
	switch {
	case len(add) > 0 && len(remove) == 0 && len(replace) == 0:
		op, names = imapv2.StoreFlagsAdd, add
	case len(remove) > 0 && len(add) == 0 && len(replace) == 0:
		op, names = imapv2.StoreFlagsDel, remove
	case len(replace) > 0 && len(add) == 0 && len(remove) == 0:
		op, names = imapv2.StoreFlagsSet, replace
	default:
		return fmt.Errorf("exactly one of --add, --remove, or --set is required")
	}

	parsed, err := imap.ParseFlags(names)
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

	if err := session.StoreFlags(set, op, parsed); err != nil {
		return err
	}

	s.logger.Info("flags stored", "mailbox", s.cfg.Mailbox, "uids", set.String(), "flags", names)
	return nil
}
