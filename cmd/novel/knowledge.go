package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/services"
)

func newKnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage who knows about an identity",
	}

	cmd.AddCommand(
		newKnowledgeAddCmd(),
		newKnowledgeUpdateCmd(),
		newKnowledgeDeleteCmd(),
		newKnowledgeWhoCmd(),
	)

	return cmd
}

func newKnowledgeAddCmd() *cobra.Command {
	var (
		level         string
		discoveredHow string
		sinceWhen     string
		public        bool
	)

	cmd := &cobra.Command{
		Use:   "add <identity-id> <knower-character-id>",
		Short: "Record that a character knows about an identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := !public
			return withIdentityService(func(svc *services.IdentityService) error {
				k, err := svc.AddKnowledge(cmd.Context(), args[0], args[1], services.KnowledgeInput{
					Level:         entities.KnowledgeLevel(level),
					DiscoveredHow: discoveredHow,
					SinceWhen:     sinceWhen,
					IsSecret:      &secret,
				})
				if err != nil {
					return err
				}
				fmt.Printf("Recorded %s knowledge: %s\n", k.KnowledgeLevel, k.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&level, "level", "l", string(entities.KnowledgeFull), "Knowledge level (suspected, partial, full)")
	cmd.Flags().StringVar(&discoveredHow, "how", "", "How the character found out")
	cmd.Flags().StringVar(&sinceWhen, "since", "", "Since when, in story time")
	cmd.Flags().BoolVar(&public, "public", false, "The knower does not keep it secret")

	return cmd
}

func newKnowledgeUpdateCmd() *cobra.Command {
	var (
		level         string
		discoveredHow string
		sinceWhen     string
		secret        bool
	)

	cmd := &cobra.Command{
		Use:   "update <identity-id> <knowledge-id>",
		Short: "Update a knowledge record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := cmd.Flags().Changed
			var patch services.KnowledgePatch
			if changed("level") {
				l := entities.KnowledgeLevel(level)
				patch.Level = &l
			}
			if changed("how") {
				patch.DiscoveredHow = &discoveredHow
			}
			if changed("since") {
				patch.SinceWhen = &sinceWhen
			}
			if changed("secret") {
				patch.IsSecret = &secret
			}

			return withIdentityService(func(svc *services.IdentityService) error {
				k, err := svc.UpdateKnowledge(cmd.Context(), args[0], args[1], patch)
				if err != nil {
					return err
				}
				fmt.Printf("Updated knowledge %s (%s)\n", k.ID, k.KnowledgeLevel)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&level, "level", "l", "", "Knowledge level (suspected, partial, full)")
	cmd.Flags().StringVar(&discoveredHow, "how", "", "How the character found out")
	cmd.Flags().StringVar(&sinceWhen, "since", "", "Since when, in story time")
	cmd.Flags().BoolVar(&secret, "secret", true, "Whether the knower keeps it secret")

	return cmd
}

func newKnowledgeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <identity-id> <knowledge-id>",
		Short: "Delete a knowledge record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIdentityService(func(svc *services.IdentityService) error {
				if err := svc.DeleteKnowledge(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Printf("Deleted knowledge: %s\n", args[1])
				return nil
			})
		},
	}
}

func newKnowledgeWhoCmd() *cobra.Command {
	var (
		level  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "who <identity-id>",
		Short: "List the characters who know about an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				result, err := d.Identities.WhoKnows(cmd.Context(), args[0], entities.KnowledgeLevel(level))
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(result)
				}

				fmt.Printf("%s (%s of %s)\n\n", result.Identity.Name, result.Identity.Type, result.Owner)
				if len(result.Knowers) == 0 {
					fmt.Println("Nobody knows.")
					return nil
				}
				w := newTable()
				fmt.Fprintln(w, "KNOWER\tLEVEL\tSECRET\tHOW")
				for _, k := range result.Knowers {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						k.Character.Name, k.Knowledge.KnowledgeLevel, yesNo(k.Knowledge.IsSecret), truncate(k.Knowledge.DiscoveredHow, 50))
				}
				w.Flush()
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&level, "level", "l", "", "Only show knowers at this level")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}
