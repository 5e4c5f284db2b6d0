package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/ragroute/internal/api"
	"github.com/kalambet/ragroute/internal/config"
	"github.com/kalambet/ragroute/internal/engine"
	"github.com/kalambet/ragroute/internal/retrieval"
	"github.com/kalambet/ragroute/internal/router"
	"github.com/kalambet/ragroute/internal/storage"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question",
	Long: `Ask a question. The running server decides whether to answer from the
indexed document or from a web search.

Examples:
  ragroute ask "What is the speed of sound in air?"
  ragroute ask --session trip "What is the weather in Tokyo today?"
  ragroute ask --local "What is an echo?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return fmt.Errorf("a non-empty question is required")
		}
		sessionID, _ := cmd.Flags().GetString("session")
		local, _ := cmd.Flags().GetBool("local")

		var turn router.Turn
		if local {
			t, err := askLocal(cmd.Context(), sessionID, query)
			if err != nil {
				return err
			}
			turn = t
		} else {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			t, ok, err := client.ask(cmd.Context(), sessionID, query)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			turn = t
		}

		printStatus("Answered by", "%s", toolLabel(turn.Tool))
		fmt.Fprintln(cmd.OutOrStdout(), turn.Reply.Content)
		return nil
	},
}

func askLocal(ctx context.Context, sessionID, query string) (router.Turn, error) {
	cfg, err := config.Load()
	if err != nil {
		return router.Turn{}, err
	}
	setupLogging(cfg.Log.Level)

	a, err := openApp(ctx, cfg, stderr)
	if err != nil {
		return router.Turn{}, err
	}
	defer a.Close()

	if _, err := a.ensureIndex(ctx, false); err != nil {
		return router.Turn{}, fmt.Errorf("building index: %w", err)
	}
	return a.router.Ask(ctx, sessionID, query)
}

func init() {
	askCmd.Flags().String("session", "cli", "conversation to continue")
	askCmd.Flags().Bool("local", false, "answer in-process instead of through the running server")
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the document index",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		remote, _ := cmd.Flags().GetBool("server")

		if remote {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			res, err := client.reindex(cmd.Context())
			if err != nil {
				return err
			}
			printSuccess("Server rebuilt the index: %d chunks in %s", res.Chunks, time.Duration(res.DurationMS)*time.Millisecond)
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		a, err := openApp(cmd.Context(), cfg, stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		printStep("Indexing %s", cfg.Document.Path)
		start := time.Now()
		res, err := a.ensureIndex(cmd.Context(), force)
		if err != nil {
			return err
		}
		if res.Skipped {
			printSuccess("Index up to date (%d chunks); use --force to rebuild", res.Chunks)
			return nil
		}
		printSuccess("Indexed %d chunks in %s", res.Chunks, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	indexCmd.Flags().Bool("force", false, "rebuild even if the document is unchanged")
	indexCmd.Flags().Bool("server", false, "ask the running server to rebuild its index")
}

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect or clear conversation history",
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the messages of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		hist, err := client.session(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(hist)
		}
		if len(hist.Messages) == 0 {
			fmt.Fprintln(out, "No messages.")
			return nil
		}
		for _, m := range hist.Messages {
			label := m.Role
			if m.Tool != "" {
				label += " (" + toolLabel(m.Tool) + ")"
			}
			fmt.Fprintf(out, "%s  %s\n%s\n\n",
				colorize(colorCyan, m.CreatedAt.Local().Format(time.DateTime)),
				colorize(colorBold, label),
				m.Content,
			)
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session's history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := client.deleteSession(cmd.Context(), args[0]); err != nil {
			return err
		}
		printSuccess("Deleted session %s", args[0])
		return nil
	},
}

func init() {
	sessionsShowCmd.Flags().Bool("json", false, "print raw JSON")
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		fmt.Fprintf(out, "\n  config file: %s\n  secrets file: %s\n", config.ConfigFilePath(), config.SecretsFilePath())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <name> <value>",
	Short: "Store a secret (openai_api_key, tavily_api_key, api_token) in the secrets file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetSecret(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Stored %s in %s", args[0], config.SecretsFilePath())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetSecretCmd)
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ragroute system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	if client, err := newAPIClient(); err == nil && client.healthy(ctx) {
		printStatus("Server", "running on port %d", cfg.Server.Port)
	} else {
		printStatus("Server", "stopped")
	}

	printStatus("Provider", "%s", cfg.LLM.Provider)
	if cfg.LLM.Provider == engine.ProviderOllama {
		if engine.NewOllamaEngine(cfg.Ollama.BaseURL).IsRunning(ctx) {
			printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
		} else {
			printStatus("Ollama", "not running")
		}
	}
	printStatus("Chat model", "%s", cfg.LLM.ChatModel)
	printStatus("Embed model", "%s", cfg.LLM.EmbedModel)

	if cfg.Search.APIKey != "" {
		printStatus("Web search", "enabled (max %d results, %s)", cfg.Search.MaxResults, cfg.Search.Depth)
	} else {
		printStatus("Web search", "disabled (TAVILY_API_KEY not set)")
	}

	printStatus("Document", "%s", cfg.Document.Path)
	if n, err := indexedChunks(cfg.Storage.DataDir); err == nil {
		printStatus("Index", "%d chunks", n)
	} else {
		printStatus("Index", "unavailable (%v)", err)
	}
	printStatus("Sessions", "%s", cfg.Session.Backend)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func indexedChunks(dataDir string) (int, error) {
	store, err := storage.Open(dataDir)
	if err != nil {
		return 0, err
	}
	defer store.Close()
	return retrieval.NewSQLiteStore(store.DB()).Count()
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the ask, recall and web_search tools over MCP (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		// stdout carries the protocol; progress goes to stderr.
		a, err := openApp(cmd.Context(), cfg, os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.ensureIndex(cmd.Context(), false); err != nil {
			return fmt.Errorf("building index: %w", err)
		}

		return server.ServeStdio(api.NewMCPServer(a.mcpDeps(), version))
	},
}
