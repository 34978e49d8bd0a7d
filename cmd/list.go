package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listIncompatible bool

// listCmd prints the manageable databases
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List manageable databases",
	Long: `List the databases owned by the current role, filtered by --db-filter or
--db-name. With database management disabled only the --db-name list is
shown.

With --incompatible only databases whose base module version does not
match --app-version are listed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, cleanup, err := newManager()
		if err != nil {
			return err
		}
		defer cleanup()

		databases, err := mgr.List(ctx)
		if err != nil {
			return explain(err, "")
		}
		if listIncompatible {
			databases = mgr.ListIncompatible(ctx, databases)
		}

		for _, name := range databases {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

// neutralizeCmd disables outbound integrations of an existing database
var neutralizeCmd = &cobra.Command{
	Use:   "neutralize <database>",
	Short: "Disable outbound integrations of a database",
	Long: `Deactivate mail servers, scheduled jobs and payment/shipping connectors
so a copied database cannot act on external systems.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, cleanup, err := newManager()
		if err != nil {
			return err
		}
		defer cleanup()

		rep, err := mgr.Neutralize(cmd.Context(), args[0])
		if err != nil {
			return explain(err, "")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ Database %s neutralized\n", args[0])
		printReport(cmd.OutOrStdout(), rep)
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listIncompatible, "incompatible", false, "Only list databases of another application version")
}
