package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
	"github.com/ersonp/lore-novel/internal/domain/services"
)

func newIdentitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "identities",
		Aliases: []string{"identity"},
		Short:   "Manage character identities",
		Long:    "List, create, update, or delete the identities characters present to the world.",
	}

	cmd.AddCommand(
		newIdentitiesListCmd(),
		newIdentitiesCreateCmd(),
		newIdentitiesUpdateCmd(),
		newIdentitiesDeleteCmd(),
		newIdentitiesPrimaryCmd(),
		newIdentitiesTimelineCmd(),
	)

	return cmd
}

func newIdentitiesListCmd() *cobra.Command {
	var (
		characterID string
		identType   string
		status      string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List identities of the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(d *internalDeps, project *entities.Project) error {
				identities, err := d.identities.List(cmd.Context(), ports.IdentityFilter{
					ProjectID:   project.ID,
					CharacterID: characterID,
					Type:        entities.IdentityType(identType),
					Status:      entities.IdentityStatus(status),
				})
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(identities)
				}
				if len(identities) == 0 {
					fmt.Println("No identities found.")
					return nil
				}
				printIdentities(identities)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&characterID, "character", "c", "", "Filter by character ID")
	cmd.Flags().StringVarP(&identType, "type", "t", "", "Filter by type (real, public, secret, disguise)")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status (active, inactive, burned)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func printIdentities(identities []*entities.Identity) {
	w := newTable()
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATUS\tPRIMARY\tEXPOSED AT\tCHARACTER")
	for _, i := range identities {
		exposed := ""
		if i.ExposedAtChapter != nil {
			exposed = fmt.Sprintf("ch. %d", *i.ExposedAtChapter)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i.ID, i.Name, i.Type, i.Status, yesNo(i.IsPrimary), exposed, i.CharacterID)
	}
	w.Flush()
}

type identityFlags struct {
	identType   string
	status      string
	primary     bool
	appearance  string
	personality string
	background  string
	voiceStyle  string
}

func (f *identityFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.identType, "type", "t", string(entities.IdentityPublic), "Identity type (real, public, secret, disguise)")
	cmd.Flags().StringVarP(&f.status, "status", "s", string(entities.IdentityActive), "Identity status (active, inactive, burned)")
	cmd.Flags().BoolVar(&f.primary, "primary", false, "Make this the character's primary identity")
	cmd.Flags().StringVar(&f.appearance, "appearance", "", "How the character looks under this identity")
	cmd.Flags().StringVar(&f.personality, "personality", "", "How the character behaves under this identity")
	cmd.Flags().StringVar(&f.background, "background", "", "Cover story")
	cmd.Flags().StringVar(&f.voiceStyle, "voice", "", "Speech style")
}

func newIdentitiesCreateCmd() *cobra.Command {
	var flags identityFlags

	cmd := &cobra.Command{
		Use:   "create <character-id> <name>",
		Short: "Create an identity for a character",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIdentityService(func(svc *services.IdentityService) error {
				identity, err := svc.Create(cmd.Context(), args[0], services.IdentityInput{
					Name:        args[1],
					Type:        entities.IdentityType(flags.identType),
					IsPrimary:   flags.primary,
					Appearance:  flags.appearance,
					Personality: flags.personality,
					Background:  flags.background,
					VoiceStyle:  flags.voiceStyle,
					Status:      entities.IdentityStatus(flags.status),
				})
				if err != nil {
					return err
				}
				fmt.Printf("Created identity %s (%s): %s\n", identity.Name, identity.Type, identity.ID)
				return nil
			})
		},
	}

	flags.register(cmd)

	return cmd
}

func newIdentitiesUpdateCmd() *cobra.Command {
	var (
		flags     identityFlags
		name      string
		exposedAt int
	)

	cmd := &cobra.Command{
		Use:   "update <identity-id>",
		Short: "Update an identity",
		Long:  "Updates the given fields of an identity. A recorded exposure chapter cannot be changed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := cmd.Flags().Changed
			var patch services.IdentityPatch
			if changed("name") {
				patch.Name = &name
			}
			if changed("type") {
				t := entities.IdentityType(flags.identType)
				patch.Type = &t
			}
			if changed("status") {
				s := entities.IdentityStatus(flags.status)
				patch.Status = &s
			}
			if changed("primary") {
				patch.IsPrimary = &flags.primary
			}
			if changed("appearance") {
				patch.Appearance = &flags.appearance
			}
			if changed("personality") {
				patch.Personality = &flags.personality
			}
			if changed("background") {
				patch.Background = &flags.background
			}
			if changed("voice") {
				patch.VoiceStyle = &flags.voiceStyle
			}
			if changed("exposed-at") {
				patch.ExposedAtChapter = &exposedAt
			}

			return withIdentityService(func(svc *services.IdentityService) error {
				identity, err := svc.Update(cmd.Context(), args[0], patch)
				if err != nil {
					return err
				}
				fmt.Printf("Updated identity %s (%s, %s)\n", identity.Name, identity.Type, identity.Status)
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "New identity name")
	cmd.Flags().IntVar(&exposedAt, "exposed-at", 0, "Chapter in which the identity was exposed")

	return cmd
}

func newIdentitiesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <identity-id>",
		Short: "Delete an identity with its careers, knowledge and memberships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIdentityService(func(svc *services.IdentityService) error {
				deleted, err := svc.Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !deleted {
					fmt.Printf("Identity %s not found.\n", args[0])
					return nil
				}
				fmt.Printf("Deleted identity: %s\n", args[0])
				return nil
			})
		},
	}
}

func newIdentitiesPrimaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "primary <character-id>",
		Short: "Show a character's primary identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIdentityService(func(svc *services.IdentityService) error {
				identity, err := svc.Primary(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printIdentities([]*entities.Identity{identity})
				return nil
			})
		},
	}
}

func newIdentitiesTimelineCmd() *cobra.Command {
	var (
		chapter int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "timeline <character-id>",
		Short: "Show a character's identities as of a chapter",
		Long:  "Shows the status of every identity of a character at a chapter. An identity exposed later is still active.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				result, err := d.Identities.Timeline(cmd.Context(), args[0], chapter)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(result)
				}

				fmt.Printf("%s at chapter %d:\n\n", result.Character.Name, result.Chapter)
				w := newTable()
				fmt.Fprintln(w, "NAME\tTYPE\tSTATUS\tEXPOSED")
				for _, at := range result.Identities {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", at.Identity.Name, at.Identity.Type, at.Status, yesNo(at.Exposed))
				}
				w.Flush()
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&chapter, "chapter", "n", 0, "Chapter number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("chapter")

	return cmd
}
