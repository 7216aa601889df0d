// Command fibsquares prints the last digit of F(0)² + F(1)² + ... + F(n)²
// for an index n read from standard input.
package main

import (
	"context"
	"os"

	"github.com/agbru/fibsquares/internal/app"
	apperrors "github.com/agbru/fibsquares/internal/errors"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if app.HasVersionFlag(args[1:]) {
		app.PrintVersion(os.Stdout)
		return apperrors.ExitSuccess
	}

	application, err := app.New(args, os.Stderr)
	if err != nil {
		if app.IsHelpError(err) {
			return apperrors.ExitSuccess
		}
		return apperrors.ExitErrorConfig
	}
	return application.Run(context.Background(), os.Stdout)
}
