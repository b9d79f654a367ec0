package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newworld-app/worldcore/internal/domain/entities"
)

func newKindsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kinds",
		Short: "Show entity kinds and their relationship fields",
		RunE:  runKindsList,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all entity kinds",
			RunE:  runKindsList,
		},
		newKindsDescribeCmd(),
	)

	return cmd
}

func runKindsList(cmd *cobra.Command, args []string) error {
	schema := entities.DefaultSchema()
	for _, kind := range entities.Kinds() {
		fmt.Printf("  %-14s %d relationship fields\n", kind, len(schema.FieldsOf(kind)))
	}
	return nil
}

func newKindsDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe KIND",
		Short: "Show the relationship fields of a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := entities.ParseKind(args[0])
			if !ok {
				return fmt.Errorf("unknown kind: %q (run 'worldcore kinds list')", args[0])
			}

			schema := entities.DefaultSchema()
			fmt.Printf("%s relationship fields:\n\n", kind)
			for _, rel := range schema.FieldsOf(kind) {
				link := "one-directional"
				if rel.Bidirectional() {
					link = fmt.Sprintf("mirrored on %s.%s", rel.Target, rel.Inverse)
				}
				fmt.Printf("  %-24s -> %-14s %-6s %s\n", rel.Field, rel.Target, rel.Cardinality, link)
			}
			return nil
		},
	}
}
