// Package cmd implements the plpc command line.
package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/voidbert/PL/compiler/internal"
	"github.com/voidbert/PL/config"
	"github.com/voidbert/PL/diagnostic"
	"github.com/voidbert/PL/ewvm"
)

// stdinName is the path argument that reads the source from standard input.
const stdinName = "-"

// app is the state shared by every command of one invocation.
type app struct {
	configPath string
	verbose    bool

	config *config.Config
	logger *log.Logger
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "plpc",
		Short: "Pascal to EWVM compiler",
		Long: `plpc compiles programs written in a subset of standard Pascal to assembly for
EWVM, a stack based virtual machine.

Examples:
  plpc build hello.pas
  plpc build -o - --no-optimize hello.pas
  plpc check hello.pas
  plpc run hello.pas
  cat hello.pas | plpc build -`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: plpc.toml, plpc.yaml or plpc.yml if present)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log every compilation stage")

	rootCmd.AddCommand(
		newBuildCmd(a),
		newCheckCmd(a),
		newRunCmd(a),
		newOptimizeCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	level := cfg.LogLevel()
	if a.verbose {
		level = log.DebugLevel
	}
	a.config = cfg
	a.logger = log.NewWithOptions(cmd.ErrOrStderr(), log.Options{Level: level, Prefix: "plpc"}).
		With("session", uuid.NewString())
	return nil
}

// readSource reads path, or standard input for "-", and returns the name to use in
// diagnostics.
func readSource(cmd *cobra.Command, path string) ([]byte, string, error) {
	if path == stdinName {
		source, err := io.ReadAll(cmd.InOrStdin())
		return source, "<stdin>", err
	}
	source, err := os.ReadFile(path)
	return source, path, err
}

// compile reports diagnostics on the command's error stream.
func (a *app) compile(cmd *cobra.Command, path string, optimize, comments bool) (ewvm.Program, error) {
	source, name, err := readSource(cmd, path)
	if err != nil {
		return nil, err
	}
	renderer := diagnostic.NewRenderer(cmd.ErrOrStderr(), a.config.ColorMode())
	collector := diagnostic.NewCollector(renderer)
	program, err := internal.Compile(source, internal.Options{
		Path:     name,
		Optimize: optimize,
		Comments: comments,
		Sink:     collector,
		Logger:   a.logger,
	})
	if err != nil {
		return nil, err
	}
	if warnings := collector.WarningCount(); warnings > 0 {
		a.logger.Info("compiled with warnings", "path", name, "warnings", warnings)
	}
	return program, nil
}

// isAssembly tells EWVM files apart from Pascal sources by extension.
func (a *app) isAssembly(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".ewvm" || ext == a.config.Output.Extension
}

func readAssembly(cmd *cobra.Command, path string) (ewvm.Program, error) {
	var rd io.Reader = cmd.InOrStdin()
	if path != stdinName {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		rd = file
	}
	program, err := ewvm.ReadProgram(rd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return program, nil
}

// writeProgram writes the exported program to output, or to the command's output stream
// for "-".
func writeProgram(cmd *cobra.Command, program ewvm.Program, output string) error {
	text := ewvm.Export(program) + "\n"
	if output == stdinName {
		_, err := io.WriteString(cmd.OutOrStdout(), text)
		return err
	}
	return os.WriteFile(output, []byte(text), 0o644)
}
