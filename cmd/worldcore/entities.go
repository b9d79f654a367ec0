package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newworld-app/worldcore/internal/application/handlers"
	"github.com/newworld-app/worldcore/internal/domain/entities"
	"github.com/newworld-app/worldcore/internal/domain/services"
)

func newEntitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "Manage entities in a world",
	}

	cmd.AddCommand(
		newEntitiesCreateCmd(),
		newEntitiesUpdateCmd(),
		newEntitiesShowCmd(),
		newEntitiesListCmd(),
		newEntitiesDeleteCmd(),
	)

	return cmd
}

// parseRefFlags turns repeated --ref "field=names" flags into a raw
// reference map. Values are free text; names that don't exist yet will be
// created during resolution.
func parseRefFlags(refs []string) (map[string]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	raw := make(map[string]string, len(refs))
	for _, pair := range refs {
		field, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --ref %q, want field=names", pair)
		}
		raw[strings.TrimSpace(field)] = value
	}
	return raw, nil
}

func printSaveResult(result *handlers.EntityResult, verb string) {
	fmt.Printf("%s %s %q (%s)\n", verb, result.Entity.Kind, result.Entity.Name, result.Entity.ID)
	for _, created := range result.Created {
		fmt.Printf("  auto-created %q (%s)\n", created.Name, created.ID)
	}
	for _, warning := range result.Warnings {
		fmt.Printf("  warning: %s\n", warning)
	}
}

func newEntitiesCreateCmd() *cobra.Command {
	var refs []string

	cmd := &cobra.Command{
		Use:   "create KIND NAME",
		Short: "Create an entity",
		Long: `Create an entity and link its references.

References are given as --ref field=names, where names is a comma-separated
list of entity names. Named entities that don't exist yet are created.

Examples:
  worldcore entities create character "Aria" --ref factions="Silver Hand" --ref abilities="Fire Magic, Ice Magic"
  worldcore entities create item "Crown of Storms" --ref createdBy="Smith"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind, ok := entities.ParseKind(args[0])
			if !ok {
				return fmt.Errorf("unknown kind: %q", args[0])
			}
			rawRefs, err := parseRefFlags(refs)
			if err != nil {
				return err
			}

			return withDeps(ctx, func(d *Deps) error {
				worldID, err := resolveWorld(ctx, d)
				if err != nil {
					return err
				}
				result, err := d.EntityHandler.HandleCreate(ctx, services.CreateInput{
					Kind:    kind,
					WorldID: worldID,
					OwnerID: globalOwner,
					Name:    args[1],
					RawRefs: rawRefs,
				})
				if err != nil {
					return fmt.Errorf("creating entity: %w", err)
				}
				printSaveResult(result, "Created")
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&refs, "ref", nil, "Relationship field as field=names (repeatable)")
	return cmd
}

func newEntitiesUpdateCmd() *cobra.Command {
	var refs []string
	var name string

	cmd := &cobra.Command{
		Use:   "update KIND ID_OR_NAME",
		Short: "Update an entity",
		Long: `Update an entity's name or references.

A --ref flag replaces that relationship field wholesale; peers dropped from
the list lose their mirrored reference and new peers gain one.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind, ok := entities.ParseKind(args[0])
			if !ok {
				return fmt.Errorf("unknown kind: %q", args[0])
			}
			rawRefs, err := parseRefFlags(refs)
			if err != nil {
				return err
			}

			return withDeps(ctx, func(d *Deps) error {
				worldID, err := resolveWorld(ctx, d)
				if err != nil {
					return err
				}
				entity, err := d.EntityHandler.HandleShow(ctx, kind, worldID, args[1])
				if err != nil {
					return err
				}
				result, err := d.EntityHandler.HandleUpdate(ctx, kind, entity.ID, services.UpdateInput{
					Name:    name,
					RawRefs: rawRefs,
				})
				if err != nil {
					return fmt.Errorf("updating entity: %w", err)
				}
				printSaveResult(result, "Updated")
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&refs, "ref", nil, "Relationship field as field=names (repeatable)")
	cmd.Flags().StringVar(&name, "name", "", "New entity name")
	return cmd
}

func newEntitiesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show KIND ID_OR_NAME",
		Short: "Show an entity and its references",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind, ok := entities.ParseKind(args[0])
			if !ok {
				return fmt.Errorf("unknown kind: %q", args[0])
			}

			return withDeps(ctx, func(d *Deps) error {
				worldID, err := resolveWorld(ctx, d)
				if err != nil {
					return err
				}
				entity, err := d.EntityHandler.HandleShow(ctx, kind, worldID, args[1])
				if err != nil {
					return err
				}

				fmt.Printf("%s %q (%s)\n", entity.Kind, entity.Name, entity.ID)
				if len(entity.Refs) > 0 {
					fields := make([]string, 0, len(entity.Refs))
					for field := range entity.Refs {
						fields = append(fields, field)
					}
					sort.Strings(fields)
					for _, field := range fields {
						if len(entity.Refs[field]) == 0 {
							continue
						}
						fmt.Printf("  %-24s %s\n", field, strings.Join(entity.Refs[field], ", "))
					}
				}
				return nil
			})
		},
	}
}

func newEntitiesListCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list KIND",
		Short: "List entities of a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind, ok := entities.ParseKind(args[0])
			if !ok {
				return fmt.Errorf("unknown kind: %q", args[0])
			}

			return withDeps(ctx, func(d *Deps) error {
				worldID, err := resolveWorld(ctx, d)
				if err != nil {
					return err
				}
				list, err := d.EntityHandler.HandleList(ctx, kind, worldID, limit, offset)
				if err != nil {
					return fmt.Errorf("listing entities: %w", err)
				}
				if len(list) == 0 {
					fmt.Println("No entities found.")
					return nil
				}
				for _, e := range list {
					fmt.Printf("  %-36s %s\n", e.ID, e.Name)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of entities to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of entities to skip")
	return cmd
}

func newEntitiesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete KIND ID_OR_NAME",
		Short: "Delete an entity and clean up references to it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind, ok := entities.ParseKind(args[0])
			if !ok {
				return fmt.Errorf("unknown kind: %q", args[0])
			}

			return withDeps(ctx, func(d *Deps) error {
				worldID, err := resolveWorld(ctx, d)
				if err != nil {
					return err
				}
				entity, err := d.EntityHandler.HandleShow(ctx, kind, worldID, args[1])
				if err != nil {
					return err
				}
				result, err := d.EntityHandler.HandleDelete(ctx, kind, entity.ID)
				if err != nil {
					return fmt.Errorf("deleting entity: %w", err)
				}
				fmt.Printf("Deleted %s %q, removed %d dangling references\n", kind, entity.Name, result.ReferencesRemoved)
				for _, warning := range result.Warnings {
					fmt.Printf("  warning: %s\n", warning)
				}
				return nil
			})
		},
	}
}
