package command

import (
	"errors"
	"fmt"

	"macroreplay/internal/config"
	"macroreplay/internal/macro"
	"macroreplay/internal/store"

	"github.com/spf13/cobra"
)

func writeCommandError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())

	var integrity *macro.IntegrityError
	switch {
	case errors.Is(err, store.ErrNotFound):
		fmt.Fprintf(cmd.ErrOrStderr(), "Hint: run '%s list' to see the stored macros\n", AppName)
	case errors.As(err, &integrity):
		fmt.Fprintf(cmd.ErrOrStderr(), "Hint: event %d of the macro file needs fixing\n", integrity.Index)
	case errors.Is(err, config.ErrUnknownKey):
		fmt.Fprintf(cmd.ErrOrStderr(), "Hint: run '%s config get' to see the available keys\n", AppName)
	}

	return err
}
