package commands

import (
	"relastore/internal/storage"

	"github.com/spf13/cobra"
)

func newMoveCmd(a *app) *cobra.Command {
	var replace, atomic bool

	cmd := &cobra.Command{
		Use:     "mv <old> <new>",
		Aliases: []string{"move"},
		Short:   "Rename a stored file, keeping its identity",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []storage.CopyOption
			if replace {
				opts = append(opts, storage.ReplaceExisting)
			}
			if atomic {
				opts = append(opts, storage.AtomicMove)
			}

			move := func(s *storage.Store) error {
				return s.Move(cmd.Context(), args[0], args[1], opts...)
			}

			var err error
			if atomic {
				err = a.store.Transact(cmd.Context(), move)
			} else {
				err = move(a.store)
			}
			if err != nil {
				return err
			}

			printf(cmd.OutOrStdout(), "Moved %s to %s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "replace an existing destination")
	cmd.Flags().BoolVar(&atomic, "atomic", false, "run the move in a single transaction")
	return cmd
}

func newCopyCmd(a *app) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:     "cp <src> <dst>",
		Aliases: []string{"copy"},
		Short:   "Copy a stored file under a new identity",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []storage.CopyOption
			if replace {
				opts = append(opts, storage.ReplaceExisting)
			}

			if err := a.store.Copy(cmd.Context(), args[0], args[1], opts...); err != nil {
				return err
			}

			printf(cmd.OutOrStdout(), "Copied %s to %s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "overwrite an existing destination")
	return cmd
}
