package cmd

import (
	"github.com/spf13/cobra"
	"github.com/voidbert/PL/ewvm"
)

func newOptimizeCmd(a *app) *cobra.Command {
	var output string
	optimizeCmd := &cobra.Command{
		Use:   "optimize <file.ewvm|->",
		Short: "Run the peephole optimizer over EWVM assembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := readAssembly(cmd, args[0])
			if err != nil {
				return err
			}
			optimized := ewvm.Optimize(program)
			a.logger.Debug("optimized", "before", len(program), "after", len(optimized))
			return writeProgram(cmd, optimized, output)
		},
	}
	optimizeCmd.Flags().StringVarP(&output, "output", "o", stdinName, `output file, "-" for standard output`)
	return optimizeCmd
}
