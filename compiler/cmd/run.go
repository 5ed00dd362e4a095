package cmd

import (
	"github.com/spf13/cobra"
	"github.com/voidbert/PL/ewvm"
)

func newRunCmd(a *app) *cobra.Command {
	var stepLimit int
	runCmd := &cobra.Command{
		Use:   "run <file.pas|file.ewvm>",
		Short: "Run a program on the reference machine",
		Long: `Runs a program on the bundled EWVM reference machine, reading standard input
and writing standard output. Pascal sources are compiled first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var program ewvm.Program
			var err error
			if a.isAssembly(args[0]) {
				program, err = readAssembly(cmd, args[0])
			} else {
				program, err = a.compile(cmd, args[0], a.config.Compiler.Optimize, false)
			}
			if err != nil {
				return err
			}
			machine, err := ewvm.NewMachine(program, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			machine.StepLimit = stepLimit
			a.logger.Debug("start machine", "instructions", len(program.Instructions()))
			return machine.Run(cmd.Context())
		},
	}
	runCmd.Flags().IntVar(&stepLimit, "step-limit", 0, "abort after this many instructions, 0 for no limit")
	return runCmd
}
