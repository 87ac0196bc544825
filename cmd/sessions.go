package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/xmlstream/internal/api"
	"github.com/JakeFAU/xmlstream/internal/store"
)

// errNoSessionStore is returned when session history is requested without a
// configured database.
var errNoSessionStore = errors.New("session history requires db.driver to be configured")

func newSessionsCmd() *cobra.Command {
	var (
		status string
		limit  int
		offset int
		output string
	)
	cmd := &cobra.Command{
		Use:   "sessions [session-id]",
		Short: "Show parse session history",
		Long: `Lists recorded parse sessions newest first, or shows one session when
an id is given. Requires a session database (db.driver postgres or sqlite).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			repo := appInstance.Sessions()
			if repo == nil {
				return errNoSessionStore
			}

			var runs []store.SessionRun
			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid session id %q: %w", args[0], err)
				}
				run, err := repo.GetSession(cmd.Context(), id)
				if err != nil {
					return err
				}
				runs = append(runs, run)
			} else {
				var filter *store.SessionStatus
				if status != "" {
					st, err := api.ParseStatus(status)
					if err != nil {
						return err
					}
					filter = &st
				}
				runs, err = repo.ListSessions(cmd.Context(), filter, limit, offset)
				if err != nil {
					return fmt.Errorf("list sessions: %w", err)
				}
			}
			return writeSessions(cmd.OutOrStdout(), output, api.ToSessionDTOs(runs))
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status: running, success or error")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum sessions to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "sessions to skip")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func writeSessions(w io.Writer, format string, sessions []api.SessionDTO) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sessions)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(sessions); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTATUS\tSOURCE\tSTARTED\tEVENTS\tBYTES\tERROR")
		for _, s := range sessions {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				s.ID, s.Status, s.Source, s.StartedAt.Format(time.RFC3339), s.Events, s.Bytes, s.ErrorClass)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
