package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hargabyte/stableid/internal/mcp"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP server for identifier lookups",
	Long: `Start an MCP (Model Context Protocol) server over stdio.

Build steps and agents that resolve many identifiers can keep one server
running instead of spawning 'stableid lookup' per identifier. The registry is
loaded once at startup and served read-only; restart the server after a
reconcile to pick up newly minted ids.

Available Tools:
  sid_lookup    Resolve a semantic id to its stable id
  sid_reverse   Resolve a stable id to its semantic id
  sid_class     Every binding of one class
  sid_classes   List the registry classes

Examples:
  stableid serve --mcp                       # Start with all tools
  stableid serve --mcp --tools lookup,class  # Start with specific tools only
  stableid serve --mcp --timeout 30m         # Auto-stop after 30 idle minutes
  stableid serve --list-tools                # Show available tools`,
	RunE: runServe,
}

var (
	serveMCP          bool
	serveTools        string
	serveTimeout      string
	serveListTools    bool
	serveRegistryPath string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "Start MCP server (stdio transport)")
	serveCmd.Flags().StringVar(&serveTools, "tools", "", "Comma-separated list of tools to expose (default: all)")
	serveCmd.Flags().StringVar(&serveTimeout, "timeout", "0", "Inactivity timeout (0 for no timeout)")
	serveCmd.Flags().BoolVar(&serveListTools, "list-tools", false, "List available tools")
	serveCmd.Flags().StringVar(&serveRegistryPath, "registry-path", "", "Registry location (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveListTools {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Available MCP tools:")
		fmt.Fprintln(out)
		for _, s := range toolSchemas() {
			fmt.Fprintf(out, "  %-12s  %s\n", s.Name, s.Description)
		}
		return nil
	}

	if !serveMCP {
		return fmt.Errorf("use --mcp to start the MCP server, or --help for usage")
	}

	timeout, err := parseDuration(serveTimeout)
	if err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := openService(commandContext(cmd), cfg, serveRegistryPath)
	if err != nil {
		return err
	}

	server, err := mcp.New(svc, mcp.Config{
		Tools:   parseToolList(serveTools),
		Timeout: timeout,
		Version: Version,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	// Handle signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("serve: shutting down")
		os.Exit(0)
	}()

	// stdout carries the MCP protocol; diagnostics go to stderr
	logger.Info("serve: starting MCP server",
		"registry", svc.Source(),
		"classes", len(svc.ListClasses()),
		"tools", server.ListTools(),
		"timeout", timeout)

	return server.ServeStdio()
}

// parseToolList splits a --tools value, accepting shorthand names.
func parseToolList(s string) []string {
	var tools []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tools = append(tools, normalizeToolName(t))
		}
	}
	return tools
}

func parseDuration(s string) (time.Duration, error) {
	if s == "0" || s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
