package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dbmanager/internal/archive"
	"dbmanager/internal/checks"
	"dbmanager/internal/cloud"
	"dbmanager/internal/lifecycle"
	"github.com/spf13/cobra"
)

var (
	loadForce      bool
	loadNeutralize bool
	loadCopy       bool
)

// loadCmd restores a zip dump into a new database
var loadCmd = &cobra.Command{
	Use:   "load [<database>] <dump_file>",
	Short: "Load a zip dump into a new database",
	Long: `Load a zip dump (dump.sql, manifest.json and an optional filestore/) into
a new database. The dump file may be a local path, an http(s) URL or a
cloud URI (s3://, minio://, b2://, azure://, gs://). Cloud dumps with a
.meta.json sidecar are verified against its SHA-256 before loading.

The database name defaults to the dump file's base name.

Native pg_dump files are not accepted; load those with pg_restore.

Examples:
  dbmanager load prod_copy /var/backups/prod_2024-06-30_02-00-00.zip
  dbmanager load -n staging https://backups.example.com/prod.zip
  dbmanager load -f staging s3://backups/nightly/prod_2024-06-30_02-00-00.zip`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		src := args[len(args)-1]

		fetched, err := cloud.NewFetcher(log).Fetch(ctx, src)
		if err != nil {
			return err
		}
		defer fetched.Cleanup()

		format, err := archive.DetectFormat(fetched.Path)
		if err != nil {
			return fmt.Errorf("failed to read dump: %w", err)
		}
		if format != archive.FormatZip {
			return fmt.Errorf("%w: %s looks like a %s; use pg_restore (or psql for plain SQL) to load it",
				lifecycle.ErrNotZipArchive, src, format)
		}

		if info, err := os.Stat(fetched.Path); err == nil {
			// the file store is extracted next to the other stores
			space := checks.CheckDiskSpaceFor(cfg.FilestoreRoot(), uint64(info.Size())*2)
			if err := space.Err(); err != nil {
				return err
			}
			if space.Warning {
				log.Warn(checks.FormatDiskSpaceMessage(space))
			}
		}

		name := defaultName(fetched.Path)
		if len(args) == 2 {
			name = args[0]
		}

		mgr, cleanup, err := newManager()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := dropIfForced(ctx, mgr, name, loadForce); err != nil {
			return err
		}

		rep, err := mgr.Restore(ctx, name, fetched.Path, lifecycle.RestoreOptions{
			Copy:       loadCopy,
			Neutralize: loadNeutralize,
		})
		if err != nil {
			return explain(err, "--force")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ Database %s loaded", name)
		if rep.Filestore {
			fmt.Fprint(cmd.OutOrStdout(), " with its file store")
		}
		fmt.Fprintln(cmd.OutOrStdout())
		printReport(cmd.OutOrStdout(), rep)
		return nil
	},
}

// defaultName derives a database name from a dump file name
func defaultName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func init() {
	loadCmd.Flags().BoolVarP(&loadForce, "force", "f", false, "Drop the target database first if it exists")
	loadCmd.Flags().BoolVar(&loadCopy, "copy", false, "Give the loaded database a new identity (uuid and secret)")
	loadCmd.Flags().BoolVarP(&loadNeutralize, "neutralize", "n", false, "Disable outbound integrations in the loaded database")
}
