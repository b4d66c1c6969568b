package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	snapshotRoles    []string
	snapshotFile     string
	snapshotNote     string
	snapshotSelected string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Create and inspect configuration snapshots",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Append a configuration snapshot starting now",
	Long: `Append a configuration snapshot. Partitions are given per role with
--role role=iri[,iri...] (repeatable) and/or a YAML file mapping role names
to lists of partition IRIs:

  metadata:
    - https://example.org/graphs/meta
  instance:
    - https://example.org/graphs/i1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		partitions, err := collectPartitions(snapshotFile, snapshotRoles)
		if err != nil {
			return err
		}
		c, done, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		id, err := c.CreateSnapshot(cmd.Context(), partitions, snapshotNote)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]string{"id": id})
	},
}

var snapshotLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the latest snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, done, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		snap, err := c.GetLatestSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), snap)
	},
}

var snapshotHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List every snapshot, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, done, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		history, err := c.GetHistoryOverview(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), history)
	},
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, done, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		snap, err := c.GetSnapshotByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), snap)
	},
}

var snapshotAsOfCmd = &cobra.Command{
	Use:   "as-of <RFC3339 time>",
	Short: "Show the snapshot that was current at a point in time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := time.Parse(time.RFC3339Nano, args[0])
		if err != nil {
			return fmt.Errorf("invalid time %q: %w", args[0], err)
		}
		c, done, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		snap, err := c.GetSnapshotAsOf(cmd.Context(), t)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), snap)
	},
}

var snapshotPartitionsCmd = &cobra.Command{
	Use:   "partitions <role>",
	Short: "Resolve the partitions of a role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, done, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		parts, err := c.ResolvePartitions(cmd.Context(), args[0], snapshotSelected)
		if err != nil {
			return err
		}
		if parts == nil {
			parts = []string{}
		}
		return printJSON(cmd.OutOrStdout(), parts)
	},
}

func init() {
	snapshotCreateCmd.Flags().StringArrayVar(&snapshotRoles, "role", nil, "role=iri[,iri...] (repeatable)")
	snapshotCreateCmd.Flags().StringVar(&snapshotFile, "file", "", "YAML file mapping roles to partition IRIs")
	snapshotCreateCmd.Flags().StringVar(&snapshotNote, "note", "", "editorial note")
	snapshotPartitionsCmd.Flags().StringVar(&snapshotSelected, "snapshot", "", "snapshot id (latest when empty)")

	snapshotCmd.AddCommand(
		snapshotCreateCmd,
		snapshotLatestCmd,
		snapshotHistoryCmd,
		snapshotShowCmd,
		snapshotAsOfCmd,
		snapshotPartitionsCmd,
	)
}

// collectPartitions merges the role file with --role flags; flags append
func collectPartitions(file string, flags []string) (map[string][]string, error) {
	out := make(map[string][]string)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("invalid role file %s: %w", file, err)
		}
	}
	for _, flag := range flags {
		role, list, ok := strings.Cut(flag, "=")
		role = strings.TrimSpace(role)
		if !ok || role == "" {
			return nil, fmt.Errorf("invalid --role %q, expected role=iri[,iri...]", flag)
		}
		for _, iri := range strings.Split(list, ",") {
			if iri = strings.TrimSpace(iri); iri != "" {
				out[role] = append(out[role], iri)
			}
		}
	}
	return out, nil
}
