package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"dbmanager/internal/lifecycle"
	"github.com/spf13/cobra"
)

var (
	dumpFormat      string
	dumpNoFilestore bool
)

// dumpCmd writes a database to a zip archive or a native dump
var dumpCmd = &cobra.Command{
	Use:   "dump <database> [<dump_path>|-]",
	Short: "Dump a database and its file store",
	Long: `Dump a database to a file or to standard output.

Formats:
  zip   dump.sql + manifest.json + filestore/ (default)
  dump  pg_dump custom format, no file store and no manifest

Examples:
  dbmanager dump prod /var/backups/prod.zip
  dbmanager dump prod --format dump > prod.dump
  dbmanager dump prod - --no-filestore | gzip > prod.zip.gz`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := args[0]
		path := "-"
		if len(args) == 2 {
			path = args[1]
		}

		var out io.Writer = cmd.OutOrStdout()
		var file *dumpFile
		if path != "-" {
			file = &dumpFile{path: path}
			out = file
		}

		mgr, cleanup, err := newManager()
		if err != nil {
			return err
		}
		defer cleanup()

		_, rep, err := mgr.Dump(ctx, name, out, lifecycle.DumpOptions{
			Format:           dumpFormat,
			IncludeFilestore: !dumpNoFilestore,
		})
		if file != nil {
			if err != nil {
				file.discard()
			} else {
				err = file.commit()
			}
		}
		if err != nil {
			return explain(err, "")
		}

		if path != "-" {
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Database %s dumped to %s\n", name, path)
		}
		printReport(cmd.ErrOrStderr(), rep)
		return nil
	},
}

// dumpFile creates a temporary file next to path on the first write and
// renames it over path on commit. A dump refused before writing anything
// leaves path untouched.
type dumpFile struct {
	path string
	tmp  *os.File
}

func (f *dumpFile) Write(p []byte) (int, error) {
	if f.tmp == nil {
		tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*")
		if err != nil {
			return 0, fmt.Errorf("failed to create dump file: %w", err)
		}
		f.tmp = tmp
	}
	return f.tmp.Write(p)
}

func (f *dumpFile) commit() error {
	if _, err := f.Write(nil); err != nil {
		return err
	}
	if err := f.tmp.Close(); err != nil {
		os.Remove(f.tmp.Name())
		return fmt.Errorf("failed to write dump file: %w", err)
	}
	if err := os.Rename(f.tmp.Name(), f.path); err != nil {
		os.Remove(f.tmp.Name())
		return fmt.Errorf("failed to write dump file: %w", err)
	}
	return nil
}

func (f *dumpFile) discard() {
	if f.tmp == nil {
		return
	}
	f.tmp.Close()
	os.Remove(f.tmp.Name())
}

func init() {
	dumpCmd.Flags().StringVar(&dumpFormat, "format", lifecycle.FormatZip, "Dump format (zip|dump)")
	dumpCmd.Flags().BoolVar(&dumpNoFilestore, "no-filestore", false, "Leave the file store out of zip dumps")
}
