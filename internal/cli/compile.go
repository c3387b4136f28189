package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr"
)

func newCompileCommand(opts *options) *cobra.Command {
	var src graphSource
	cmd := &cobra.Command{
		Use:   "compile <expression>",
		Short: "Compile an expression and print its program",
		Long: `Compile an expression and print the disassembled program with its static
analysis: stack depth, work registers, cull capacity and entity dereference
counts. Named subexpressions are printed after the main program.`,
		Example: `  graphexpr compile "next.arc.value > 0.5 && next.type == 'user'"
  graphexpr compile "hot := vertex.ideg > 100, hot ? 1 : 0"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.newEngine(cmd)
			if err != nil {
				return err
			}
			g, err := src.load()
			if err != nil {
				return err
			}
			defer g.Release()
			ev, err := eng.NewEvaluator(g, args[0], nil)
			if err != nil {
				return describe(err)
			}
			defer ev.Discard()

			out := cmd.OutOrStdout()
			p := ev.Program()
			fmt.Fprint(out, p.Disassemble())
			for _, d := range p.Defined {
				fmt.Fprintln(out)
				fmt.Fprint(out, d.Disassemble())
			}
			if len(p.Strings) > 0 {
				fmt.Fprintf(out, "\n; strings: %s\n", strings.Join(quoteAll(p.Strings), ", "))
			}
			return nil
		},
	}
	src.register(cmd)
	return cmd
}

// describe prefixes a compile error with its kind.
func describe(err error) error {
	return fmt.Errorf("%s error: %w", graphexpr.Classify(err), err)
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
