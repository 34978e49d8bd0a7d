package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	duplicateForce      bool
	duplicateNeutralize bool
	renameForce         bool
)

// duplicateCmd copies a database and its file store
var duplicateCmd = &cobra.Command{
	Use:   "duplicate <source> <target>",
	Short: "Copy a database and its file store",
	Long: `Copy a database by cloning it as a template, give the copy a new identity
and copy the file store. Sessions on the source are terminated first.

Examples:
  dbmanager duplicate prod staging
  dbmanager duplicate -f -n prod staging`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		source, target := args[0], args[1]

		mgr, cleanup, err := newManager()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := dropIfForced(ctx, mgr, target, duplicateForce); err != nil {
			return err
		}

		rep, err := mgr.Duplicate(ctx, source, target, duplicateNeutralize)
		if err != nil {
			return explain(err, "--force")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ Database %s duplicated to %s\n", source, target)
		printReport(cmd.OutOrStdout(), rep)
		return nil
	},
}

// renameCmd renames a database and moves its file store
var renameCmd = &cobra.Command{
	Use:   "rename <source> <target>",
	Short: "Rename a database and its file store",
	Long: `Rename a database, then move its file store directory to the new name.
Sessions on the source are terminated first.

Examples:
  dbmanager rename staging staging_old
  dbmanager rename -f staging_new staging`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		source, target := args[0], args[1]

		mgr, cleanup, err := newManager()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := dropIfForced(ctx, mgr, target, renameForce); err != nil {
			return err
		}

		rep, err := mgr.Rename(ctx, source, target)
		if err != nil {
			return explain(err, "--force")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ Database %s renamed to %s\n", source, target)
		printReport(cmd.OutOrStdout(), rep)
		return nil
	},
}

func init() {
	duplicateCmd.Flags().BoolVarP(&duplicateForce, "force", "f", false, "Drop the target database first if it exists")
	duplicateCmd.Flags().BoolVarP(&duplicateNeutralize, "neutralize", "n", false, "Disable outbound integrations in the copy")
	renameCmd.Flags().BoolVarP(&renameForce, "force", "f", false, "Drop the target database first if it exists")
}
