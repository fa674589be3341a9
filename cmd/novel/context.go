package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-novel/internal/application/handlers"
	"github.com/ersonp/lore-novel/internal/domain/entities"
)

func newContextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Build chapter writing context",
	}

	cmd.AddCommand(newContextBuildCmd())

	return cmd
}

func newContextBuildCmd() *cobra.Command {
	var (
		req    handlers.ContextRequest
		asJSON bool
		stats  bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the writing context of a chapter",
		Long: "Assembles the outline, the end of the previous chapter, the cast with their identities " +
			"as of the chapter, relevant memories and foreshadowing, and prints the generation prompt.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(d *internalDeps, project *entities.Project) error {
				req.ProjectID = project.ID
				result, err := d.Context.Handle(cmd.Context(), req)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(result)
				}

				fmt.Print(result.Prompt)
				if stats {
					s := result.Context.Stats
					fmt.Fprintf(os.Stderr, "\n%d characters, ~%d tokens (outline %d, continuation %d, characters %d, identities %d, memories %d, foreshadow %d)\n",
						s.TotalLength, s.EstimatedTokens, s.OutlineLength, s.ContinuationLength,
						s.CharactersLength, s.IdentitiesLength, s.MemoriesLength, s.ForeshadowLength)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&req.ChapterNumber, "chapter", "n", 0, "Chapter number")
	cmd.Flags().StringVar(&req.Style, "style", "", "Writing style instruction")
	cmd.Flags().StringVar(&req.StyleFile, "style-file", "", "Read the writing style from a file")
	cmd.Flags().IntVarP(&req.TargetWordCount, "words", "w", DefaultTargetWordCount, "Target chapter length in words")
	cmd.Flags().StringVar(&req.Perspective, "perspective", "", "Narrative perspective, overriding the project's")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the context and prompt as JSON")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print context size to stderr")
	_ = cmd.MarkFlagRequired("chapter")

	return cmd
}
