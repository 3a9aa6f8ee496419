// Package cli is the clarvis command line client: chat about a page, generate
// study materials and re-attach to generations left running by an earlier
// invocation.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"clarvis-be/internal/pkg/logger"
	"clarvis-be/pkg/client"
	"clarvis-be/pkg/client/store"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	version = "dev"

	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

type globalFlags struct {
	backend   string
	dbPath    string
	agentId   string
	ephemeral bool
	verbose   bool
}

// app holds what every command needs, built once flags are parsed.
type app struct {
	flags  globalFlags
	store  *store.Store
	api    *client.API
	logger logger.ILogger
	http   *http.Client
}

// NewRootCommand builds the command tree. httpClient may be nil.
func NewRootCommand(httpClient *http.Client) *cobra.Command {
	a := &app{http: httpClient}

	root := &cobra.Command{
		Use:   "clarvis",
		Short: "Chat about web pages and generate study materials",
		Long: `clarvis talks to a Clarvis backend.

Conversations, settings and in-flight study material generations are kept in a
local database, so a generation started by one invocation can be picked up by
the next one with "clarvis resume".

Quick Start:
  clarvis chat --page-file page.json "What is this page about?"
  clarvis generate --page-file page.json --difficulty beginner
  clarvis resume`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&a.flags.backend, "backend", "", "Backend URL (overrides the stored setting)")
	root.PersistentFlags().StringVar(&a.flags.dbPath, "db", defaultDBPath(), "Path of the local state database")
	root.PersistentFlags().StringVar(&a.flags.agentId, "agent", "default", "Chat agent id")
	root.PersistentFlags().BoolVar(&a.flags.ephemeral, "ephemeral", false, "Keep state in memory only")
	root.PersistentFlags().BoolVarP(&a.flags.verbose, "verbose", "v", false, "Enable verbose logging")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newChatCommand(a),
		newGenerateCommand(a),
		newResumeCommand(a),
		newConversationsCommand(a),
		newHistoryCommand(a),
		newConfigCommand(a),
		newHealthCommand(a),
	)
	return root
}

// Execute runs the client and exits non-zero on failure.
func Execute(ctx context.Context) {
	if err := NewRootCommand(nil).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		os.Exit(1)
	}
}

func (a *app) init(ctx context.Context) error {
	if a.flags.verbose {
		a.logger = logger.NewConsoleLogger()
	} else {
		a.logger = logger.NewNopLogger()
	}

	var kv store.KV
	if a.flags.ephemeral {
		kv = store.NewMemoryKV()
	} else {
		if err := os.MkdirAll(filepath.Dir(a.flags.dbPath), 0o755); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
		gormKV, err := store.OpenFile(a.flags.dbPath)
		if err != nil {
			return fmt.Errorf("open state database: %w", err)
		}
		kv = gormKV
	}
	a.store = store.New(kv)

	backend := a.flags.backend
	if backend == "" {
		stored, err := a.store.BackendURL(ctx)
		if err != nil {
			return err
		}
		backend = stored
	}
	a.api = client.NewAPI(backend, a.http)
	a.logger.Debug("CLI", "Client ready", map[string]interface{}{
		"backend":   backend,
		"ephemeral": a.flags.ephemeral,
	})
	return nil
}

func (a *app) coordinator() *client.Coordinator {
	return client.NewCoordinator(a.api, client.NewPoller(a.api), a.store)
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "clarvis-client.db"
	}
	return filepath.Join(home, ".clarvis", "client.db")
}
