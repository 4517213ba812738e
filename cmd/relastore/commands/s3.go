package commands

import (
	"relastore/internal/resource"
	"relastore/internal/storage"

	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		name    string
		replace bool
	)

	cmd := &cobra.Command{
		Use:   "import <bucket> <object>",
		Short: "Store an object read from an S3-compatible bucket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket, key := args[0], args[1]
			if name == "" {
				name = key
			}

			client, err := resource.NewS3Client(a.cfg.S3Config())
			if err != nil {
				return err
			}

			src, err := resource.StatS3Object(cmd.Context(), client, bucket, key)
			if err != nil {
				return err
			}

			var opts []storage.OpenOption
			if replace {
				opts = append(opts, storage.OpenTruncateExisting)
			}

			obj, err := a.store.Put(cmd.Context(), src, name, opts...)
			if err != nil {
				return err
			}

			printf(cmd.OutOrStdout(), "Imported s3://%s/%s as %s (%s)\n", bucket, key, obj.Filename, obj.URI())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "store under this name instead of the object key")
	cmd.Flags().BoolVar(&replace, "replace", false, "overwrite an existing file, keeping its identity")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "export <name> <bucket>",
		Short: "Upload a stored file to an S3-compatible bucket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, bucket := args[0], args[1]
			if key == "" {
				key = name
			}

			client, err := resource.NewS3Client(a.cfg.S3Config())
			if err != nil {
				return err
			}

			obj, rc, err := a.store.Open(cmd.Context(), name)
			if err != nil {
				return err
			}
			defer rc.Close()

			// A pending length is unknown; minio-go streams with -1.
			if err := resource.UploadS3(cmd.Context(), client, bucket, key, rc, obj.ContentLength); err != nil {
				return err
			}

			printf(cmd.OutOrStdout(), "Exported %s to s3://%s/%s\n", name, bucket, key)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "object", "", "object key (default the stored name)")
	return cmd
}
