package cmd

import (
	"fmt"

	"dbmanager/internal/lifecycle"
	"github.com/spf13/cobra"
)

var (
	initForce   bool
	initOptions lifecycle.CreateOptions
)

// initCmd creates a new database and bootstraps it
var initCmd = &cobra.Command{
	Use:   "init <database>",
	Short: "Create and initialize a database",
	Long: `Create a new database from the configured template, add the standard
extensions and bootstrap the base application state.

Examples:
  # New database with the default admin/admin credentials
  dbmanager init prod

  # Replace an existing database, French defaults, with demo data
  dbmanager init demo --force --with-demo --language fr_FR --country FR`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := args[0]

		mgr, cleanup, err := newManager()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := dropIfForced(ctx, mgr, name, initForce); err != nil {
			return err
		}

		rep, err := mgr.Create(ctx, name, initOptions)
		if err != nil {
			return explain(err, "--force")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ Database %s created\n", name)
		printReport(cmd.OutOrStdout(), rep)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Drop the database first if it exists")
	initCmd.Flags().BoolVar(&initOptions.Demo, "with-demo", false, "Load demonstration data")
	initCmd.Flags().StringVar(&initOptions.Lang, "language", "en_US", "Default language")
	initCmd.Flags().StringVar(&initOptions.Login, "username", "admin", "Administrator login")
	initCmd.Flags().StringVar(&initOptions.Password, "password", "admin", "Administrator password")
	initCmd.Flags().StringVar(&initOptions.Country, "country", "", "Company country code")
	initCmd.Flags().StringVar(&initOptions.Phone, "phone", "", "Company phone number")
	initCmd.Flags().StringVar(&initOptions.Collate, "collate", "", "LC_COLLATE of the new database (clones template0)")
}
