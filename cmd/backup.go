package cmd

import (
	"fmt"

	"dbmanager/internal/backup"
	"dbmanager/internal/lifecycle"
	"dbmanager/internal/metadata"
	"dbmanager/internal/retention"
	"github.com/spf13/cobra"
)

var (
	backupDest        string
	backupFormat      string
	backupNoFilestore bool
	backupDryRun      bool
)

// backupCmd takes a timestamped backup and prunes old ones
var backupCmd = &cobra.Command{
	Use:   "backup <database>",
	Short: "Take a timestamped backup of a database",
	Long: `Dump a database into the backup directory as <database>_<timestamp>.<format>,
write a .meta.json sidecar with its SHA-256 and prune backups older than
--retention-days, always keeping the newest --min-backups.

With a cloud --dest the backup and its sidecar are also uploaded and the
same retention policy is applied to the remote prefix.

Examples:
  dbmanager backup prod
  dbmanager backup prod --dest /mnt/backups --format dump
  dbmanager backup prod --dest s3://backups/nightly --retention-days 14
  dbmanager backup prod --dest azure://container/prod --min-backups 3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, cleanup, err := newManager()
		if err != nil {
			return err
		}
		defer cleanup()

		engine := backup.New(cfg, mgr, log)
		result, err := engine.Run(cmd.Context(), backup.Options{
			Database:         args[0],
			Format:           backupFormat,
			IncludeFilestore: !backupNoFilestore,
			Dest:             backupDest,
			Retention: retention.Policy{
				RetentionDays: cfg.RetentionDays,
				MinBackups:    cfg.MinBackups,
				DryRun:        backupDryRun,
			},
		})
		if err != nil {
			return explain(err, "")
		}

		out := cmd.OutOrStdout()
		meta := result.Metadata
		fmt.Fprintf(out, "✅ Backup %s (%s)\n", meta.Path, metadata.FormatSize(meta.SizeBytes))
		fmt.Fprintf(out, "   SHA-256: %s\n", meta.SHA256)
		if result.Remote != "" {
			fmt.Fprintf(out, "   Uploaded: %s\n", result.Remote)
		}
		printCleanup(cmd, "local", result.LocalCleanup)
		printCleanup(cmd, "remote", result.RemoteCleanup)
		printReport(out, result.Report)
		return nil
	},
}

func printCleanup(cmd *cobra.Command, where string, r *retention.CleanupResult) {
	if r == nil || len(r.Deleted) == 0 {
		return
	}
	verb := "Removed"
	if backupDryRun {
		verb = "Would remove"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "   %s %d expired %s backup(s), %s\n",
		verb, len(r.Deleted), where, metadata.FormatSize(r.SpaceFreed))
}

func init() {
	backupCmd.Flags().StringVar(&backupDest, "dest", "", "Backup directory or cloud URI (default: --backup-dir)")
	backupCmd.Flags().StringVar(&backupFormat, "format", lifecycle.FormatZip, "Dump format (zip|dump)")
	backupCmd.Flags().BoolVar(&backupNoFilestore, "no-filestore", false, "Leave the file store out of zip backups")
	backupCmd.Flags().BoolVar(&backupDryRun, "dry-run", false, "Report expired backups without deleting them")
}
