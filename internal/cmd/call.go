package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hargabyte/stableid/internal/lookup"
	"github.com/hargabyte/stableid/internal/mcp"
	"github.com/hargabyte/stableid/internal/registry"
	"github.com/spf13/cobra"
)

var (
	callList         bool
	callPipe         bool
	callRegistryPath string
)

var callCmd = &cobra.Command{
	Use:   "call [tool] [key=value...]",
	Short: "Call an MCP lookup tool from the command line",
	Long: `Call any stableid MCP tool without starting a server.

Arguments are key=value pairs, or a single JSON object. Results are the
same JSON documents the MCP server returns.

Modes:
  stableid call --list                       List all tools and parameters
  stableid call <tool> key=value ...         Call a tool
  stableid call --pipe                       Read JSON lines from stdin

Tool names accept shorthand: "lookup" is equivalent to "sid_lookup".`,
	Example: `  stableid call --list
  stableid call lookup class=PropertyValue semantic_id=ebv_genetic_diversity
  stableid call reverse '{"class":"PropertyValue","uuid":"mbo_1f0c..."}'
  stableid call classes
  echo '{"tool":"sid_class","args":{"class":"Action"}}' | stableid call --pipe`,
	RunE: runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)
	callCmd.Flags().BoolVar(&callList, "list", false, "List all available tools and their parameters")
	callCmd.Flags().BoolVar(&callPipe, "pipe", false, "Read JSON lines from stdin (pipe mode)")
	callCmd.Flags().StringVar(&callRegistryPath, "registry-path", "", "Registry location (default from config)")
}

func runCall(cmd *cobra.Command, args []string) error {
	if callList {
		return runCallList(cmd)
	}
	if !callPipe && len(args) == 0 {
		return fmt.Errorf("tool name required (run 'stableid call --list' to see available tools)")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := openService(commandContext(cmd), cfg, callRegistryPath)
	if err != nil {
		return err
	}
	srv, err := mcp.New(svc, mcp.Config{Version: Version, Logger: logger})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	if callPipe {
		return runCallPipe(cmd, srv)
	}
	return runCallSingle(cmd, srv, args)
}

// toolSchemas lists every tool without loading a registry.
func toolSchemas() []mcp.ToolSchema {
	srv, err := mcp.New(lookup.FromRegistry(registry.New()), mcp.Config{})
	if err != nil {
		return nil
	}
	return srv.GetToolSchemas()
}

func runCallList(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return writeOutput(cmd, cfg, toolSchemas())
}

func runCallSingle(cmd *cobra.Command, srv *mcp.Server, args []string) error {
	toolArgs, err := parseCallArgs(args[1:])
	if err != nil {
		return err
	}

	result, err := srv.CallTool(normalizeToolName(args[0]), toolArgs)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result)
	return nil
}

// parseCallArgs accepts either one JSON object or key=value pairs.
func parseCallArgs(args []string) (map[string]interface{}, error) {
	toolArgs := make(map[string]interface{})
	if len(args) == 1 && strings.HasPrefix(strings.TrimSpace(args[0]), "{") {
		if err := json.Unmarshal([]byte(args[0]), &toolArgs); err != nil {
			return nil, fmt.Errorf("invalid JSON args: %w", err)
		}
		return toolArgs, nil
	}

	for _, a := range args {
		key, value, ok := strings.Cut(a, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q (expected key=value)", a)
		}
		toolArgs[key] = value
	}
	return toolArgs, nil
}

// pipeRequest is the JSON format for pipe mode input.
type pipeRequest struct {
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args"`
}

// pipeResponse is the JSON format for pipe mode output.
type pipeResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func runCallPipe(cmd *cobra.Command, srv *mcp.Server) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	scanner := bufio.NewScanner(cmd.InOrStdin())
	// Allow larger lines (1MB)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req pipeRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			enc.Encode(pipeResponse{Error: fmt.Sprintf("invalid JSON: %v", err)})
			continue
		}
		if req.Args == nil {
			req.Args = make(map[string]interface{})
		}

		result, err := srv.CallTool(normalizeToolName(req.Tool), req.Args)
		if err != nil {
			enc.Encode(pipeResponse{Error: err.Error()})
			continue
		}
		enc.Encode(pipeResponse{Result: json.RawMessage(result)})
	}

	return scanner.Err()
}

// normalizeToolName converts shorthand names to full tool names.
// "lookup" -> "sid_lookup", "sid_lookup" -> "sid_lookup"
func normalizeToolName(name string) string {
	if !strings.HasPrefix(name, "sid_") {
		return "sid_" + name
	}
	return name
}
