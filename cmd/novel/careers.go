package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/services"
)

func newCareersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "careers",
		Short: "Manage the careers of an identity",
	}

	cmd.AddCommand(
		newCareersListCmd(),
		newCareersAddCmd(),
		newCareersUpdateCmd(),
		newCareersDeleteCmd(),
	)

	return cmd
}

func newCareersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <identity-id>",
		Short: "List the careers of an identity, main careers first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIdentityService(func(svc *services.IdentityService) error {
				links, err := svc.Careers(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if len(links) == 0 {
					fmt.Println("No careers.")
					return nil
				}
				w := newTable()
				fmt.Fprintln(w, "CAREER\tTYPE\tSTAGE\tPROGRESS\tNOTES")
				for _, l := range links {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d%%\t%s\n", l.CareerID, l.CareerType, l.CurrentStage, l.StageProgress, truncate(l.Notes, 40))
				}
				w.Flush()
				return nil
			})
		},
	}
}

func newCareersAddCmd() *cobra.Command {
	var (
		careerType string
		stage      int
	)

	cmd := &cobra.Command{
		Use:   "add <identity-id> <career-id>",
		Short: "Give an identity a career",
		Long:  "Links a career to an identity. An identity has at most one main career.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIdentityService(func(svc *services.IdentityService) error {
				link, err := svc.AddCareer(cmd.Context(), args[0], args[1], entities.CareerType(careerType), stage)
				if err != nil {
					return err
				}
				fmt.Printf("Added %s career %s at stage %d\n", link.CareerType, link.CareerID, link.CurrentStage)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&careerType, "type", "t", string(entities.CareerMain), "Career type (main, sub)")
	cmd.Flags().IntVar(&stage, "stage", 1, "Starting stage")

	return cmd
}

func newCareersUpdateCmd() *cobra.Command {
	var (
		stage     int
		progress  int
		startedAt string
		reachedAt string
		notes     string
	)

	cmd := &cobra.Command{
		Use:   "update <identity-id> <career-id>",
		Short: "Update an identity's progress in a career",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := cmd.Flags().Changed
			var patch services.CareerPatch
			if changed("stage") {
				patch.CurrentStage = &stage
			}
			if changed("progress") {
				patch.StageProgress = &progress
			}
			if changed("started-at") {
				patch.StartedAt = &startedAt
			}
			if changed("reached-at") {
				patch.ReachedAt = &reachedAt
			}
			if changed("notes") {
				patch.Notes = &notes
			}

			return withIdentityService(func(svc *services.IdentityService) error {
				link, err := svc.UpdateCareer(cmd.Context(), args[0], args[1], patch)
				if err != nil {
					return err
				}
				fmt.Printf("Career %s now at stage %d (%d%%)\n", link.CareerID, link.CurrentStage, link.StageProgress)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&stage, "stage", 0, "Current stage")
	cmd.Flags().IntVar(&progress, "progress", 0, "Progress within the stage (0-100)")
	cmd.Flags().StringVar(&startedAt, "started-at", "", "When the career started, in story time")
	cmd.Flags().StringVar(&reachedAt, "reached-at", "", "When the current stage was reached, in story time")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes")

	return cmd
}

func newCareersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <identity-id> <career-id>",
		Short: "Remove a career from an identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIdentityService(func(svc *services.IdentityService) error {
				if err := svc.DeleteCareer(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Printf("Removed career %s from identity %s\n", args[1], args[0])
				return nil
			})
		},
	}
}
