// Package main is the tana CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/tana/internal/cli"
	"github.com/hyperjump/tana/internal/config"
	"github.com/hyperjump/tana/internal/embedding"
	"github.com/hyperjump/tana/internal/models"
	"github.com/hyperjump/tana/internal/retrieval"
	"github.com/hyperjump/tana/internal/server"
	"github.com/hyperjump/tana/internal/store"
	"github.com/hyperjump/tana/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/tana/config.yaml"

var (
	configPath string
	debugFlag  bool
	serverURL  string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tana",
		Short: "Workspace-isolated vector retrieval",
		Long: `tana embeds text chunks into per-workspace vector indexes and answers
nearest-neighbour queries against them, over HTTP or from the command line.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVar(&serverURL, "server", "", "server URL for add, search and stats (empty = use the data root directly)")

	root.AddCommand(newServerCmd(), newAddCmd(), newSearchCmd(), newStatsCmd(), newVersionCmd())
	return root
}

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// components holds the wired embedder, store and retrieval service.
type components struct {
	Provider *embedding.Provider
	Embedder embedding.Embedder
	Store    *store.Store
	Service  *retrieval.Service
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	provider, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	if cfg.Embedding.EagerLoad {
		if err := provider.Init(ctx); err != nil {
			return nil, err
		}
	}
	embedder, err := embedding.NewCached(provider, cfg.Embedding.CacheSize)
	if err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("embedding cache: %w", err)
	}

	st, err := store.New(store.Options{
		DataRoot:   cfg.Storage.DataRoot,
		IndexType:  cfg.Storage.IndexType,
		Dimensions: cfg.Embedding.Dimensions,
		MaxLoaded:  cfg.Storage.MaxLoaded(),
		Logger:     logger,
	})
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("store: %w", err)
	}

	svc, err := retrieval.New(embedder, st,
		retrieval.WithLogger(logger),
		retrieval.WithWorkers(cfg.Workers.PoolSize),
		retrieval.WithSearchLimits(cfg.Search.DefaultK, cfg.Search.MaxK),
	)
	if err != nil {
		_ = st.Close()
		_ = embedder.Close()
		return nil, err
	}
	return &components{Provider: provider, Embedder: embedder, Store: st, Service: svc}, nil
}

// Close releases the store and the embedding model.
func (c *components) Close() error {
	return errors.Join(c.Store.Close(), c.Embedder.Close())
}

// setup loads config and builds a logger for commands that work on the data root directly.
func setup() (*config.Config, string, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || debugFlag)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, resolved, logger, nil
}

// withComponents runs fn against a freshly wired service and closes it afterwards.
func withComponents(ctx context.Context, fn func(*components) error) error {
	cfg, _, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	c, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			logger.Warn("close failed", zap.Error(cerr))
		}
	}()
	return fn(c)
}

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolved, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			logger.Info("config loaded",
				zap.String("config_path", resolved),
				zap.Bool("debug", cfg.Debug || debugFlag))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := c.Close(); cerr != nil {
					logger.Warn("close failed", zap.Error(cerr))
				}
			}()

			srv := server.NewServer(c.Service, &cfg.Server, logger)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
}

func newAddCmd() *cobra.Command {
	var (
		workspace string
		texts     []string
		meta      []string
		format    string
	)
	cmd := &cobra.Command{
		Use:   "add --workspace W --text T [--text T...] [--meta k=v...]",
		Short: "Embed texts and add them to a workspace",
		Long: `Embed each --text and append it to the workspace index. Every --meta
key=value pair is attached to each text added by this call.

Examples:
  tana add --workspace 42 --text "the cat sat on the mat" --meta source=notes.md --meta page=3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			if len(texts) == 0 {
				return fmt.Errorf("at least one --text is required")
			}
			md, err := cli.ParseMetadata(meta)
			if err != nil {
				return err
			}
			metadata := make([]map[string]any, len(texts))
			for i := range metadata {
				metadata[i] = md
			}

			var resp *models.AddDocumentsResponse
			if serverURL != "" {
				resp, err = addViaHTTP(serverURL, workspace, &models.AddDocumentsRequest{Texts: texts, Metadata: metadata})
			} else {
				err = withComponents(cmd.Context(), func(c *components) error {
					ids, err := c.Service.AddDocuments(cmd.Context(), workspace, texts, metadata)
					if err != nil {
						return err
					}
					resp = &models.AddDocumentsResponse{WorkspaceID: workspace, IDs: ids}
					return nil
				})
			}
			if err != nil {
				return fmt.Errorf("add failed: %w", err)
			}
			return cli.WriteAdded(cmd.OutOrStdout(), resp, outFormat)
		},
	}
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "workspace id")
	cmd.Flags().StringArrayVarP(&texts, "text", "t", nil, "text to add (repeatable)")
	cmd.Flags().StringArrayVar(&meta, "meta", nil, "metadata key=value applied to every text (repeatable)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var (
		workspace string
		k         int
		format    string
	)
	cmd := &cobra.Command{
		Use:   "search --workspace W [-k N] <query...>",
		Short: "Find the nearest chunks in a workspace",
		Long: `Query is all remaining arguments joined by spaces. Multi-word queries work
with or without quotes.

Examples:
  tana search --workspace 42 machine learning
  tana search --workspace 42 -k 10 --format json "machine learning"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			query := buildSearchQuery(args)
			if query == "" {
				return models.ErrEmptyQuery
			}

			var resp *models.SearchResponse
			if serverURL != "" {
				resp, err = searchViaHTTP(serverURL, workspace, &models.SearchQuery{Query: query, K: k})
			} else {
				err = withComponents(cmd.Context(), func(c *components) error {
					start := time.Now()
					results, err := c.Service.Search(cmd.Context(), workspace, query, k)
					if err != nil {
						return err
					}
					resp = &models.SearchResponse{
						WorkspaceID: workspace,
						Query:       query,
						Results:     results,
						QueryTime:   time.Since(start).Milliseconds(),
					}
					return nil
				})
			}
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			return cli.WriteSearchResults(cmd.OutOrStdout(), resp, outFormat)
		},
	}
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "workspace id")
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of results (0 = configured default)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var (
		workspace string
		format    string
	)
	cmd := &cobra.Command{
		Use:   "stats --workspace W",
		Short: "Show workspace size and health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			var stats *models.WorkspaceStats
			if serverURL != "" {
				stats, err = statsViaHTTP(serverURL, workspace)
			} else {
				err = withComponents(cmd.Context(), func(c *components) error {
					var err error
					stats, err = c.Service.Stats(cmd.Context(), workspace)
					return err
				})
			}
			if err != nil {
				return fmt.Errorf("stats failed: %w", err)
			}
			return cli.WriteStats(cmd.OutOrStdout(), stats, outFormat)
		},
	}
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "workspace id")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tana version %s\n", version)
		},
	}
}

func parseFormat(s string) (cli.OutputFormat, error) {
	switch s {
	case "text", "":
		return cli.OutputText, nil
	case "json":
		return cli.OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
