package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/xmlstream/internal/transform"
)

const stdinSource = "-"

func newEventsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "events <source>",
		Short: "Print the event stream of a document",
		Long: `Parses the document and prints one line per event: open tags with
their attributes, decoded text runs, close tags and the final end event.
<source> is a local path, file://, gs:// or memory:// URI, or "-" for stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			recFormat, err := transform.ParseRecordFormat(format)
			if err != nil {
				return err
			}
			rw := transform.NewRecordWriter(cmd.OutOrStdout(), recFormat)

			source := args[0]
			if source == stdinSource {
				err = appInstance.ParseReader(cmd.Context(), "stdin", cmd.InOrStdin(), rw.Handlers())
			} else {
				err = appInstance.ParseURI(cmd.Context(), source, rw.Handlers())
			}
			if ferr := rw.Flush(); err == nil {
				err = ferr
			}
			if err != nil {
				return fmt.Errorf("parse %s: %w", source, err)
			}
			appInstance.Logger().Debug("events written", zap.String("source", source), zap.Int("records", rw.Count()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(transform.FormatText), "output format: text or json")
	return cmd
}
