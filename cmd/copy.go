package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/xmlstream/internal/transform"
)

func newCopyCmd() *cobra.Command {
	var (
		drop []string
		trim bool
	)
	cmd := &cobra.Command{
		Use:   "copy <source> <dest>",
		Short: "Re-serialize a document, optionally pruning elements",
		Long: `Streams <source> through the parser and writes the re-serialized
document to <dest>. Elements named with --drop are removed together with their
content. Either side may be "-" for stdin/stdout. The destination object is
only created when the whole source parses.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			var opts []transform.Option
			if len(drop) > 0 {
				opts = append(opts, transform.WithDrop(drop...))
			}
			if trim {
				opts = append(opts, transform.WithTrimWhitespace())
			}

			src, dst := args[0], args[1]
			if dst != stdinSource && src != stdinSource {
				location, written, err := appInstance.CopyURI(cmd.Context(), src, dst, opts...)
				if err != nil {
					return fmt.Errorf("copy %s: %w", src, err)
				}
				appInstance.Logger().Info("document copied",
					zap.String("source", src),
					zap.String("dest", location),
					zap.Int64("bytes", written),
				)
				return nil
			}
			if dst != stdinSource {
				return errors.New("stdin input requires stdout output")
			}

			c := transform.NewCopier(cmd.OutOrStdout(), opts...)
			if src == stdinSource {
				err = appInstance.ParseReader(cmd.Context(), "stdin", cmd.InOrStdin(), c.Handlers())
			} else {
				err = appInstance.ParseURI(cmd.Context(), src, c.Handlers())
			}
			if err != nil {
				return fmt.Errorf("copy %s: %w", src, err)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&drop, "drop", nil, "element names to remove (repeatable or comma separated)")
	cmd.Flags().BoolVar(&trim, "trim", false, "drop whitespace-only text")
	return cmd
}
