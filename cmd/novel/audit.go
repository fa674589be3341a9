package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-novel/internal/domain/entities"
)

func newAuditCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the latest recorded changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(d *internalDeps, project *entities.Project) error {
				entries, err := d.db.ListAudit(cmd.Context(), project.ID, limit)
				if err != nil {
					return fmt.Errorf("listing audit log: %w", err)
				}
				if asJSON {
					return printJSON(entries)
				}
				if len(entries) == 0 {
					fmt.Println("No changes recorded.")
					return nil
				}

				w := newTable()
				fmt.Fprintln(w, "TIME\tACTION\tSUBJECT\tDETAILS")
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, e.SubjectID, truncate(formatDetails(e.Details), 60))
				}
				w.Flush()
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultAuditLimit, "Maximum number of entries to display")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func formatDetails(details map[string]any) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return strings.Join(parts, " ")
}
