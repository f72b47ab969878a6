package main

import (
	"github.com/spf13/cobra"

	"github.com/Mavahu/opacity-go/metadata"
)

func newMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "mv <remote-path> <folder>",
		Aliases: []string{"move"},
		Short:   "Move a remote file or folder into another folder",
		Long: `Moves a file or folder into the destination folder, keeping its name.
Folder moves are recorded in the local journal; if one is interrupted, run
'opacity reconcile' to finish it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := metadata.CleanPath(args[1])
			if err != nil {
				return err
			}

			s, err := a.session(cmd.Context(), "moving")
			if err != nil {
				return err
			}
			defer s.close()

			from, item, err := resolve(cmd.Context(), s.vault, args[0])
			if err != nil {
				return err
			}
			return s.vault.Move(cmd.Context(), from, item, to)
		},
	}
}

func newRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <remote-path> <new-name>",
		Short: "Rename a remote file or folder in place",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := metadata.ValidateName(args[1]); err != nil {
				return err
			}

			s, err := a.session(cmd.Context(), "renaming")
			if err != nil {
				return err
			}
			defer s.close()

			folder, item, err := resolve(cmd.Context(), s.vault, args[0])
			if err != nil {
				return err
			}
			if err := s.vault.Rename(cmd.Context(), folder, item, args[1]); err != nil {
				return err
			}
			a.printf(cmd, "%s renamed %s to %s\n", successText.Sprint("✓"),
				pathText.Sprint(metadata.Join(folder, item.Name)), pathText.Sprint(args[1]))
			return nil
		},
	}
}

func newReconcileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Finish folder moves and renames interrupted by a crash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(cmd.Context(), "reconciling")
			if err != nil {
				return err
			}
			defer s.close()

			n, err := s.vault.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			if n == 0 {
				a.printf(cmd, "%s nothing to reconcile\n", dimText.Sprint("-"))
				return nil
			}
			a.printf(cmd, "%s finished %d interrupted relocation(s)\n", successText.Sprint("✓"), n)
			return nil
		},
	}
}
