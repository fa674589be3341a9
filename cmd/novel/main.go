// Package main provides the entry point for the novel CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-novel/internal/domain/apperrors"
	"github.com/ersonp/lore-novel/internal/mcpserver"
)

var (
	version       = "0.1.0-dev"
	globalProject string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context) error {
	mcpserver.Version = version

	rootCmd := &cobra.Command{
		Use:           "novel",
		Short:         "Track character identities and build chapter writing context",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&globalProject, "project", "p", "", "Project ID or title (default: the only project)")

	rootCmd.AddCommand(
		newInitCmd(),
		newImportCmd(),
		newIdentitiesCmd(),
		newCareersCmd(),
		newKnowledgeCmd(),
		newCharactersCmd(),
		newContextCmd(),
		newExposuresCmd(),
		newMemoriesCmd(),
		newAuditCmd(),
		newServeCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}

// exitCode maps rejections to 2 so scripts can tell bad input from failures.
func exitCode(err error) int {
	if errors.Is(err, errUsage) || apperrors.IsRejection(err) {
		return 2
	}
	return 1
}
