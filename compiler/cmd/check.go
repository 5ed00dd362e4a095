package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/voidbert/PL/compiler/internal"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file.pas|->",
		Short: "Report diagnostics without writing any output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				_, err := a.compile(cmd, path, false, false)
				switch {
				case err == nil:
					a.logger.Debug("check passed", "path", path)
				case errors.Is(err, internal.ErrLexical), errors.Is(err, internal.ErrCompilation):
					failed++
				default:
					a.logger.Error("check failed", "path", path, "err", err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed to compile", failed, len(args))
			}
			return nil
		},
	}
}
