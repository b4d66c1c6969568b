package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var schemaSnapshot string

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "Inspect the type hierarchy of the latest snapshot",
}

// typeCommand builds a one-argument types subcommand around a catalog call
func typeCommand(use, short string, call func(ctx context.Context, c catalog, id string) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <type-iri>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, done, err := openCatalog(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			out, err := call(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

var schemaCmd = typeCommand("schema", "Resolve the merged property schema of a type",
	func(ctx context.Context, c catalog, id string) (any, error) {
		return c.ResolveSchema(ctx, id, schemaSnapshot)
	})

func init() {
	typesCmd.AddCommand(
		typeCommand("get", "Show one type", func(ctx context.Context, c catalog, id string) (any, error) {
			return c.GetType(ctx, id)
		}),
		typeCommand("hierarchy", "Show a type and all its descendants", func(ctx context.Context, c catalog, id string) (any, error) {
			return c.GetHierarchy(ctx, id)
		}),
		typeCommand("ancestors", "List a type and its super-types, nearest first", func(ctx context.Context, c catalog, id string) (any, error) {
			return c.GetAncestors(ctx, id)
		}),
		typeCommand("leaves", "List the leaf types under a type", func(ctx context.Context, c catalog, id string) (any, error) {
			return c.GetLeafTypes(ctx, id)
		}),
		typeCommand("instantiable", "List the instantiable leaf types under a type", func(ctx context.Context, c catalog, id string) (any, error) {
			return c.GetInstantiableTypes(ctx, id)
		}),
	)

	schemaCmd.Flags().StringVar(&schemaSnapshot, "snapshot", "", "snapshot id (latest when empty)")
}
