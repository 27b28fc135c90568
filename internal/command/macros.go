package command

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"macroreplay/internal/macro"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored macros",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			infos, err := ctx.Store.List()
			if err != nil {
				return writeCommandError(cmd, err)
			}

			out := cmd.OutOrStdout()
			if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
				return json.NewEncoder(out).Encode(infos)
			}
			if len(infos) == 0 {
				fmt.Fprintf(out, "No macros in %s\n", ctx.Store.Dir())
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tEVENTS\tDURATION\tSIZE\tMODIFIED")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
					info.Name, info.Events, info.Duration.Round(10*time.Millisecond),
					humanize.Bytes(uint64(info.Size)), humanize.Time(info.Modified))
			}
			return w.Flush()
		},
	}
	cmd.Flags().Bool("json", false, "output in JSON format")
	return cmd
}

// NewShowCmd creates the show command.
func NewShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print the events of a macro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			m, err := ctx.Store.Load(args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s, %s\n", m.Name,
				humanize.Plural(m.Len(), "event", ""), m.Duration().Round(10*time.Millisecond))
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tTIME\tTYPE\tDETAIL")
			for i, e := range m.Events {
				fmt.Fprintf(w, "%d\t%.3fs\t%s\t%s\n", i, e.Offset().Seconds(), e.Kind(), describe(e))
			}
			return w.Flush()
		},
	}
}

func describe(e macro.Event) string {
	switch e := e.(type) {
	case macro.PointerClick:
		return fmt.Sprintf("%s click at (%d, %d)", e.Button, e.X, e.Y)
	case macro.KeyAction:
		key := fmt.Sprintf("%q", e.Key)
		if e.Special {
			key = e.Key
		}
		return fmt.Sprintf("%s %s", e.Action, key)
	case macro.Delay:
		return "wait"
	}
	return ""
}

// NewNormalizeCmd creates the normalize command.
func NewNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <name>",
		Short: "Shift a macro so its first event fires immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			m, err := ctx.Store.Load(args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if m.Len() == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s has no events\n", m.Name)
				return nil
			}

			shift := m.Events[0].Offset()
			if err := ctx.Store.Save(m.Normalize()); err != nil {
				return writeCommandError(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Normalized %s (shifted by %s)\n", m.Name, shift)
			return nil
		},
	}
}

// NewAppendCmd creates the append command.
func NewAppendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "append <target> <source>",
		Short: "Append one macro to the end of another",
		Long: "Append the events of <source> to <target> and save the result as <target>. " +
			"With relative timing the source keeps its own spacing and starts --gap after the target ends; " +
			"with --absolute the source's recorded times are offset by the same base.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			gap, _ := cmd.Flags().GetDuration("gap")
			absolute, _ := cmd.Flags().GetBool("absolute")
			if gap < 0 {
				return writeCommandError(cmd, fmt.Errorf("gap must not be negative, got %s", gap))
			}

			target, err := ctx.Store.Load(args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			source, err := ctx.Store.Load(args[1])
			if err != nil {
				return writeCommandError(cmd, err)
			}

			timing := macro.TimingRelative
			if absolute {
				timing = macro.TimingAbsolute
			}
			merged := target.Append(source, gap, timing)
			if err := ctx.Store.Save(merged); err != nil {
				return writeCommandError(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Appended %s to %s: %s, %s\n", source.Name, target.Name,
				humanize.Plural(merged.Len(), "event", ""), merged.Duration().Round(10*time.Millisecond))
			return nil
		},
	}
	cmd.Flags().Duration("gap", macro.DefaultAppendGap, "pause between the two macros")
	cmd.Flags().Bool("absolute", false, "keep the source's recorded times instead of re-basing them")
	return cmd
}

// NewRmCmd creates the rm command.
func NewRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a stored macro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctx.Store.Delete(args[0]); err != nil {
				return writeCommandError(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}
