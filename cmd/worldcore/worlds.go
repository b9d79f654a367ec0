package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWorldsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worlds",
		Short: "Manage worlds",
	}

	cmd.AddCommand(
		newWorldsListCmd(),
		newWorldsCreateCmd(),
		newWorldsDeleteCmd(),
	)

	return cmd
}

func newWorldsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all worlds",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				owner, err := requireOwner()
				if err != nil {
					return err
				}
				worlds, err := d.WorldHandler.HandleList(ctx, owner)
				if err != nil {
					return fmt.Errorf("listing worlds: %w", err)
				}
				if len(worlds) == 0 {
					fmt.Println("No worlds yet.")
					fmt.Println("Use 'worldcore worlds create NAME' to create one.")
					return nil
				}
				for _, w := range worlds {
					fmt.Printf("  %-30s %s\n", w.Name, w.Description)
				}
				return nil
			})
		},
	}
}

func newWorldsCreateCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new world",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				owner, err := requireOwner()
				if err != nil {
					return err
				}
				world, err := d.WorldHandler.HandleCreate(ctx, owner, args[0], description)
				if err != nil {
					return fmt.Errorf("creating world: %w", err)
				}
				fmt.Printf("Created world %q (%s)\n", world.Name, world.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "World description")
	return cmd
}

func newWorldsDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a world and every entity in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !force {
				return fmt.Errorf("deleting a world removes every entity in it; re-run with --force")
			}
			return withDeps(ctx, func(d *Deps) error {
				owner, err := requireOwner()
				if err != nil {
					return err
				}
				removed, err := d.WorldHandler.HandleDelete(ctx, owner, args[0])
				if err != nil {
					return fmt.Errorf("deleting world: %w", err)
				}
				fmt.Printf("Deleted world %q and %d entities\n", args[0], removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation check")
	return cmd
}
