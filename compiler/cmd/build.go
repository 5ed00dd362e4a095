package cmd

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newBuildCmd(a *app) *cobra.Command {
	var (
		output       string
		noOptimize   bool
		emitComments bool
	)
	buildCmd := &cobra.Command{
		Use:   "build <file.pas|->",
		Short: "Compile a program to EWVM assembly",
		Long: `Compiles a Pascal program. The output goes next to the source with the
configured extension, or to standard output when reading from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			optimize := a.config.Compiler.Optimize && !noOptimize
			comments := a.config.Compiler.Comments || emitComments
			program, err := a.compile(cmd, args[0], optimize, comments)
			if err != nil {
				return err
			}
			if output == "" {
				output = a.outputPath(args[0])
			}
			a.logger.Debug("writing program", "output", output, "elements", len(program))
			return writeProgram(cmd, program, output)
		},
	}
	buildCmd.Flags().StringVarP(&output, "output", "o", "", `output file, "-" for standard output`)
	buildCmd.Flags().BoolVar(&noOptimize, "no-optimize", false, "skip the peephole optimizer")
	buildCmd.Flags().BoolVar(&emitComments, "emit-comments", false, "annotate declarations in the output")
	return buildCmd
}

func (a *app) outputPath(source string) string {
	if source == stdinName {
		return stdinName
	}
	return strings.TrimSuffix(source, filepath.Ext(source)) + a.config.Output.Extension
}
