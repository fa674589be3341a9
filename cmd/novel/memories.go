package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-novel/internal/domain/entities"
)

func newMemoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memories",
		Short: "Manage the semantic memory index",
	}

	cmd.AddCommand(newMemoriesReindexCmd())

	return cmd
}

func newMemoriesReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the vector index of the project's memories",
		Long:  "Re-embeds every stored memory of the project and replaces its entries in Qdrant. Requires memory search to be enabled.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(d *internalDeps, project *entities.Project) error {
				n, err := d.memories.Reindex(cmd.Context(), project.ID)
				if err != nil {
					return err
				}
				fmt.Printf("Indexed %d memories.\n", n)
				return nil
			})
		},
	}
}
