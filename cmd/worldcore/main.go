// Package main provides the entry point for the worldcore CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version     = "0.1.0-dev"
	globalWorld string
	globalOwner string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:     "worldcore",
		Short:   "A reference-consistency engine for worldbuilding entity graphs",
		Version: version,
	}

	rootCmd.PersistentFlags().StringVarP(&globalWorld, "world", "w", "", "World to operate in (required for entity commands)")
	rootCmd.PersistentFlags().StringVarP(&globalOwner, "owner", "o", os.Getenv("WORLDCORE_OWNER"), "Owner id (defaults to $WORLDCORE_OWNER)")

	rootCmd.AddCommand(
		newWorldsCmd(),
		newKindsCmd(),
		newEntitiesCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}
