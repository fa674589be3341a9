package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-novel/internal/domain/entities"
)

func newCharactersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "characters",
		Short: "Manage characters",
	}

	cmd.AddCommand(
		newCharactersListCmd(),
		newCharactersDeleteCmd(),
		newCharactersSeedCmd(),
	)

	return cmd
}

func newCharactersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the characters of the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(d *internalDeps, project *entities.Project) error {
				characters, err := d.db.ListCharacters(cmd.Context(), project.ID)
				if err != nil {
					return fmt.Errorf("listing characters: %w", err)
				}
				if len(characters) == 0 {
					fmt.Println("No characters found.")
					return nil
				}

				w := newTable()
				fmt.Fprintln(w, "ID\tNAME\tROLE\tORGANIZATION")
				for _, c := range characters {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.RoleType, yesNo(c.IsOrganization))
				}
				w.Flush()
				return nil
			})
		},
	}
}

func newCharactersDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <character-id>",
		Short: "Delete a character",
		Long:  "Deletes a character with its identities, the knowledge it holds and is held about it, and its memberships.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !confirmAction(fmt.Sprintf("Delete character %s and all its identities?", args[0])) {
				fmt.Println("Cancelled.")
				return nil
			}
			return withDeps(func(d *Deps) error {
				if err := d.Identities.DeleteCharacter(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted character: %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

func newCharactersSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-identities",
		Short: "Give every character without an identity its default real identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(d *internalDeps, project *entities.Project) error {
				created, err := d.Identities.SeedDefaultIdentities(cmd.Context(), project.ID)
				if err != nil {
					return err
				}
				fmt.Printf("Created %d default identities.\n", created)
				return nil
			})
		},
	}
}
