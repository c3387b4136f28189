package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr/expr"
)

func newFuncsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "funcs",
		Short: "List builtin functions and symbols",
		Long:  `List the builtin functions with their arity, followed by the builtin symbols.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := expr.DefaultTable()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "functions:")
			for _, name := range t.Funcs() {
				d, _ := t.Func(name)
				fmt.Fprintf(out, "  %-14s %s\n", name, arity(d))
			}
			fmt.Fprintln(out, "symbols:")
			fmt.Fprintf(out, "  %s\n", strings.Join(t.Symbols(), " "))
			return nil
		},
	}
}

func arity(d *expr.Descriptor) string {
	switch {
	case d.MaxArgs < 0:
		return fmt.Sprintf("%d+", d.MinArgs)
	case d.MinArgs == d.MaxArgs:
		return fmt.Sprint(d.MinArgs)
	default:
		return fmt.Sprintf("%d-%d", d.MinArgs, d.MaxArgs)
	}
}
