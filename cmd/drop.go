package cmd

import (
	"fmt"
	"os"

	"dbmanager/internal/lifecycle"
	"dbmanager/internal/tui"
	"github.com/spf13/cobra"
)

var dropYes bool

// dropCmd removes a database and its file store
var dropCmd = &cobra.Command{
	Use:   "drop <database>",
	Short: "Drop a database and its file store",
	Long: `Drop a database, then delete its file store directory. Sessions on the
database are terminated first. The file store is only deleted once the
database is gone.

On a terminal the command asks for confirmation unless --yes is given.

Examples:
  dbmanager drop staging_old
  dbmanager drop --yes staging_old`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := args[0]

		if !dropYes && isTerminal(os.Stdin) && isTerminal(os.Stdout) {
			ok, err := tui.Confirm(ctx, os.Stdin, os.Stdout, "Drop database",
				fmt.Sprintf("Drop %s and delete its file store? This cannot be undone.", name))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
				return nil
			}
		}

		mgr, cleanup, err := newManager()
		if err != nil {
			return err
		}
		defer cleanup()

		rep, err := mgr.Drop(ctx, name)
		if err != nil {
			return explain(err, "")
		}
		if !rep.Dropped {
			return fmt.Errorf("%w: %s", lifecycle.ErrNotExist, name)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ Database %s dropped\n", name)
		printReport(cmd.OutOrStdout(), rep)
		return nil
	},
}

func init() {
	dropCmd.Flags().BoolVarP(&dropYes, "yes", "y", false, "Do not ask for confirmation")
}
