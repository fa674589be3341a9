package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-novel/internal/application/handlers"
	"github.com/ersonp/lore-novel/internal/domain/apperrors"
	"github.com/ersonp/lore-novel/internal/domain/services"
)

func newImportCmd() *cobra.Command {
	var opts handlers.ImportOptions

	cmd := &cobra.Command{
		Use:   "import <bundle>",
		Short: "Import a project bundle",
		Long: "Imports a project with its characters, organizations, careers, outlines, chapters, " +
			"identities, knowledge, memberships, memories and foreshadows from a JSON or YAML bundle. " +
			"Characters without an identity get a default real identity.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				result, err := d.Import.Handle(cmd.Context(), args[0], opts)
				if err != nil {
					return err
				}
				return printImportResult(result, opts.DryRun)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "auto", "Bundle format: json, yaml, or auto")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Validate the bundle without saving")

	return cmd
}

func printImportResult(result *services.ImportResult, dryRun bool) error {
	if len(result.Errors) > 0 {
		fmt.Printf("%d invalid records:\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("  %s\n", e.Error())
		}
		return apperrors.Validation("bundle has %d invalid records, nothing imported", len(result.Errors))
	}

	if dryRun {
		fmt.Println("Bundle is valid, would import:")
	} else {
		fmt.Printf("Imported project %s\n", result.ProjectID)
	}
	fmt.Printf("  characters:    %d (%d organizations)\n", result.Characters, result.Organizations)
	fmt.Printf("  identities:    %d (%d defaults)\n", result.Identities, result.DefaultIdentities)
	fmt.Printf("  knowledge:     %d\n", result.Knowledge)
	fmt.Printf("  memberships:   %d\n", result.Memberships)
	fmt.Printf("  careers:       %d\n", result.Careers)
	fmt.Printf("  outlines:      %d\n", result.Outlines)
	fmt.Printf("  chapters:      %d\n", result.Chapters)
	fmt.Printf("  memories:      %d\n", result.Memories)
	fmt.Printf("  foreshadows:   %d\n", result.Foreshadows)
	return nil
}
