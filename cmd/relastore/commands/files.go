package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"relastore/internal/ident"
	"relastore/internal/resource"
	"relastore/internal/storage"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// putConcurrency bounds the number of files stored at once.
const putConcurrency = 4

func newInitCmd(a *app) *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the storage table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if printOnly {
				printf(cmd.OutOrStdout(), "%s;\n", a.store.CreateTableSQL())
				return nil
			}
			if err := a.store.CreateTable(cmd.Context()); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Initialized table %s\n", a.store.Table())
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the DDL instead of executing it")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var exact bool

	cmd := &cobra.Command{
		Use:     "ls [pattern...]",
		Aliases: []string{"list"},
		Short:   "List stored files matching glob patterns (* and ?)",
		RunE: func(cmd *cobra.Command, args []string) error {
			objects, err := a.store.List(cmd.Context(), args...)
			if err != nil {
				return err
			}
			sort.Slice(objects, func(i, j int) bool { return objects[i].Filename < objects[j].Filename })

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			printf(tw, "NAME\tSIZE\tMODIFIED\tURI\n")
			for _, o := range objects {
				printf(tw, "%s\t%s\t%s\t%s\n", o.Filename, formatSize(o.ContentLength, exact), o.LastModified.Format(time.RFC3339), o.URI())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&exact, "bytes", false, "print sizes in bytes")
	return cmd
}

func formatSize(n int64, exact bool) string {
	switch {
	case n < 0:
		return "pending"
	case exact:
		return fmt.Sprintf("%d", n)
	default:
		return humanize.Bytes(uint64(n))
	}
}

func newStatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <name>",
		Short: "Show the metadata of a stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, err := a.store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printf(out, "Name:       %s\n", obj.Filename)
			printf(out, "Size:       %s (%d bytes)\n", formatSize(obj.ContentLength, false), obj.ContentLength)
			printf(out, "Modified:   %s (%s)\n", obj.LastModified.Format(time.RFC3339Nano), humanize.Time(obj.LastModified))
			printf(out, "URI:        %s\n", obj.URI())
			printf(out, "Token:      %s\n", obj.Token())
			printf(out, "Integer:    %s\n", ident.ToBigInt(obj.UUID))
			printf(out, "Compressed: %t\n", obj.Compressed)
			printf(out, "Encrypted:  %t\n", obj.Encrypted)
			return nil
		},
	}
}

func newPutCmd(a *app) *cobra.Command {
	var (
		replace bool
		name    string
	)

	cmd := &cobra.Command{
		Use:   "put <file>...",
		Short: "Store local files; - reads standard input",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name != "" && len(args) != 1 {
				return errors.New("--name needs exactly one file")
			}

			var opts []storage.OpenOption
			if replace {
				opts = append(opts, storage.OpenTruncateExisting)
			}

			eg, ctx := errgroup.WithContext(cmd.Context())
			eg.SetLimit(putConcurrency)

			results := make([]*storage.Object, len(args))
			for i, path := range args {
				eg.Go(func() error {
					target := name
					var res storage.Resource
					if path == "-" {
						if target == "" {
							return errors.New("reading standard input needs --name")
						}
						res = resource.NewStream(cmd.InOrStdin(), time.Time{})
					} else {
						res = resource.File{Path: path}
						if target == "" {
							target = path
						}
					}

					obj, err := a.store.Put(ctx, res, target, opts...)
					if err != nil {
						return err
					}
					results[i] = obj
					a.logger.Debug("Stored file", "source", path, "name", target, "uuid", obj.Token())
					return nil
				})
			}
			err := eg.Wait()

			for _, obj := range results {
				if obj != nil {
					printf(cmd.OutOrStdout(), "%s\t%s\t%s\n", obj.Filename, humanize.Bytes(uint64(obj.ContentLength)), obj.URI())
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "overwrite an existing file, keeping its identity")
	cmd.Flags().StringVar(&name, "name", "", "store under this name instead of the path")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Write the content of a stored file to a file or standard output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, rc, err := a.store.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer rc.Close()

			if output == "" || output == "-" {
				_, err := io.Copy(cmd.OutOrStdout(), rc)
				return err
			}

			if err := resource.WriteFile(output, rc, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			if err := os.Chtimes(output, obj.LastModified, obj.LastModified); err != nil {
				a.logger.Warn("Failed to set modification time", "path", output, "error", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination path (default standard output)")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>...",
		Aliases: []string{"delete"},
		Short:   "Delete stored files",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			for _, name := range args {
				if err := a.store.Delete(cmd.Context(), name); err != nil {
					errs = append(errs, err)
					continue
				}
				printf(cmd.OutOrStdout(), "Deleted %s\n", name)
			}
			return errors.Join(errs...)
		},
	}
}
