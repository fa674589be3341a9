package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-novel/internal/application/handlers"
	"github.com/ersonp/lore-novel/internal/domain/entities"
)

func newExposuresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exposures",
		Short: "Apply identity exposures from chapter analysis",
		Long: "Exposed identities are burned from the chapter on, witnesses learn the identity, " +
			"and organization memberships held through it change status.",
	}

	cmd.AddCommand(
		newExposuresApplyCmd(),
		newExposuresAnalyzeCmd(),
	)

	return cmd
}

func newExposuresApplyCmd() *cobra.Command {
	var (
		chapter int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "apply <analysis-file>",
		Short: "Apply a JSON or YAML chapter analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(d *internalDeps, project *entities.Project) error {
				report, err := d.Exposures.HandleApplyFile(cmd.Context(), project.ID, chapter, args[0])
				if err != nil {
					return err
				}
				return printExposureReport(report, asJSON)
			})
		},
	}

	cmd.Flags().IntVarP(&chapter, "chapter", "n", 0, "Chapter in which the exposures happened")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("chapter")

	return cmd
}

func newExposuresAnalyzeCmd() *cobra.Command {
	var (
		chapter int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Detect the exposures of a written chapter with the LLM and apply them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(d *internalDeps, project *entities.Project) error {
				report, err := d.Exposures.HandleAnalyze(cmd.Context(), project.ID, chapter)
				if err != nil {
					return err
				}
				return printExposureReport(report, asJSON)
			})
		},
	}

	cmd.Flags().IntVarP(&chapter, "chapter", "n", 0, "Chapter to analyze")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("chapter")

	return cmd
}

func printExposureReport(report *handlers.ExposureReport, asJSON bool) error {
	if asJSON {
		return printJSON(report)
	}

	if len(report.Results) == 0 {
		fmt.Printf("No identity exposures in chapter %d.\n", report.ChapterNumber)
		return nil
	}

	fmt.Printf("Chapter %d: %d of %d exposures applied\n\n", report.ChapterNumber, report.Applied(), len(report.Results))
	for _, res := range report.Results {
		switch {
		case res.Error != "":
			fmt.Printf("- %s / %s: %s\n", res.CharacterName, res.IdentityName, res.Error)
			continue
		case res.IdentityUpdated:
			fmt.Printf("- %s / %s: burned\n", res.CharacterName, res.IdentityName)
		default:
			fmt.Printf("- %s / %s: already exposed\n", res.CharacterName, res.IdentityName)
		}
		if res.KnowledgeCreatedCount > 0 || res.KnowledgeRaisedCount > 0 {
			fmt.Printf("    knowledge: %d new, %d raised to full\n", res.KnowledgeCreatedCount, res.KnowledgeRaisedCount)
		}
		for _, t := range res.OrganizationsAffected {
			fmt.Printf("    membership %s: %s -> %s\n", t.MembershipID, t.OldStatus, t.NewStatus)
		}
		if res.MemoryRecorded {
			fmt.Println("    memory recorded")
		}
	}
	return nil
}
