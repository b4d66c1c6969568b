// Package commands implements the typecatalog command line
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/nainya/typecatalog/internal/app"
	"github.com/nainya/typecatalog/internal/config"
	"github.com/nainya/typecatalog/internal/logger"
	"github.com/nainya/typecatalog/internal/server"
)

var (
	cfgFile  string
	addr     string
	logLevel string
	cfg      *config.Config
	log      *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "typecatalog",
	Short: "Configuration snapshots and schema resolution for typed records",
	Long: `typecatalog keeps an append-only history of configuration snapshots that
assign graph partitions to roles, and resolves type hierarchies and merged
property schemas from the metadata partitions of a snapshot.

Commands run against an embedded catalog built from the configuration, or
against a running server when --addr is set.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// NewRootCommand returns the root command, used by tests to run subcommands
func NewRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "address of a running catalog server; embedded when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "%s" .Version}}
`)
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	log = logger.InitGlobalLogger(logger.Config{
		Level:      cfg.Logging.Level,
		Pretty:     cfg.Logging.Pretty,
		WithCaller: cfg.Logging.Caller,
	})
	return nil
}

// catalog is what the snapshot, types and schema commands need. Both the
// embedded services and the gRPC client satisfy it.
type catalog interface {
	server.Snapshots
	server.Types
}

type embedded struct {
	server.Snapshots
	server.Types
}

// openCatalog connects to --addr or builds the embedded catalog
func openCatalog(ctx context.Context) (catalog, func(), error) {
	if addr != "" {
		conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		return server.NewClient(conn), func() { conn.Close() }, nil
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return embedded{a.Snapshots, a.Resolver}, func() { a.Close() }, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
