package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/graph"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/vector"
)

func newImportCommand() *cobra.Command {
	var yamlFile, dbFile string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Store a YAML graph fixture in a SQLite fixture store",
		Long: `Load a YAML graph fixture and save it into a SQLite fixture store under
its own name, replacing any graph saved under that name before.`,
		Example: `  graphexpr import -g social.yaml --db fixtures.db`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := graph.LoadYAMLFile(yamlFile, vector.Factory)
			if err != nil {
				return err
			}
			defer g.Release()

			store, err := graph.OpenSQLite(dbFile)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Save(g); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "saved graph %q: %d vertices, %d arcs\n",
				g.Name(), g.Order(), g.Size())
			return err
		},
	}
	cmd.Flags().StringVarP(&yamlFile, "graph", "g", "", "YAML graph fixture")
	cmd.Flags().StringVar(&dbFile, "db", "", "SQLite fixture store")
	_ = cmd.MarkFlagRequired("graph")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}
