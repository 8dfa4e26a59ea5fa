// Package mcp provides an MCP (Model Context Protocol) server for stableid.
// This lets build steps and agents resolve identifiers through a long-lived
// process instead of one CLI call per lookup. The server is read-only.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/hargabyte/stableid/internal/lookup"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server with the registry lookup tools
type Server struct {
	mcpServer    *server.MCPServer
	svc          *lookup.Service
	tools        map[string]bool
	lastActivity time.Time
	timeout      time.Duration
	logger       *slog.Logger
	mu           sync.RWMutex
}

// Config holds server configuration
type Config struct {
	Tools   []string      // Which tools to expose (empty = all)
	Timeout time.Duration // Inactivity timeout (0 = no timeout)
	Version string
	Logger  *slog.Logger
}

// AllTools lists all available tools
var AllTools = []string{"sid_lookup", "sid_reverse", "sid_class", "sid_classes"}

// New creates a new MCP server over svc
func New(svc *lookup.Service, cfg Config) (*Server, error) {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcpServer:    server.NewMCPServer("stableid", version, server.WithToolCapabilities(false)),
		svc:          svc,
		tools:        make(map[string]bool),
		lastActivity: time.Now(),
		timeout:      cfg.Timeout,
		logger:       logger,
	}

	toolsToRegister := cfg.Tools
	if len(toolsToRegister) == 0 {
		toolsToRegister = AllTools
	}

	for _, toolName := range toolsToRegister {
		if err := s.registerTool(toolName); err != nil {
			return nil, fmt.Errorf("failed to register tool %s: %w", toolName, err)
		}
		s.tools[toolName] = true
	}

	return s, nil
}

// registerTool registers a single tool with the MCP server
func (s *Server) registerTool(name string) error {
	var tool mcp.Tool
	switch name {
	case "sid_lookup":
		tool = mcp.NewTool("sid_lookup",
			mcp.WithDescription(toolSchemaRegistry[name].Description),
			mcp.WithString("class",
				mcp.Required(),
				mcp.Description("Class name, e.g. PropertyValue"),
			),
			mcp.WithString("semantic_id",
				mcp.Required(),
				mcp.Description("Semantic identifier to resolve"),
			),
		)
	case "sid_reverse":
		tool = mcp.NewTool("sid_reverse",
			mcp.WithDescription(toolSchemaRegistry[name].Description),
			mcp.WithString("class",
				mcp.Required(),
				mcp.Description("Class name"),
			),
			mcp.WithString("uuid",
				mcp.Required(),
				mcp.Description("Stable identifier to resolve"),
			),
		)
	case "sid_class":
		tool = mcp.NewTool("sid_class",
			mcp.WithDescription(toolSchemaRegistry[name].Description),
			mcp.WithString("class",
				mcp.Required(),
				mcp.Description("Class name"),
			),
		)
	case "sid_classes":
		tool = mcp.NewTool("sid_classes",
			mcp.WithDescription(toolSchemaRegistry[name].Description),
		)
	default:
		return fmt.Errorf("unknown tool: %s", name)
	}

	s.mcpServer.AddTool(tool, s.handler(name))
	return nil
}

// handler adapts CallTool to an MCP tool handler
func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.updateActivity()

		result, err := s.CallTool(name, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(result), nil
	}
}

// ServeStdio starts the server using stdio transport
func (s *Server) ServeStdio() error {
	if s.timeout > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go s.timeoutChecker(ctx, 30*time.Second, func() {
			s.logger.Info("serve: inactivity timeout", "timeout", s.timeout)
			cancel()
		})
		err := server.NewStdioServer(s.mcpServer).Listen(ctx, os.Stdin, os.Stdout)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return server.ServeStdio(s.mcpServer)
}

// timeoutChecker calls expire once no tool call has happened for s.timeout
func (s *Server) timeoutChecker(ctx context.Context, every time.Duration, expire func()) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.idle() > s.timeout {
				expire()
				return
			}
		}
	}
}

func (s *Server) idle() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastActivity)
}

// updateActivity updates the last activity timestamp
func (s *Server) updateActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// ListTools returns the registered tools in sorted order
func (s *Server) ListTools() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]string, 0, len(s.tools))
	for t := range s.tools {
		tools = append(tools, t)
	}
	sort.Strings(tools)
	return tools
}

// ToolSchema describes a tool's name, description, and parameters.
type ToolSchema struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Parameters  []ParameterSchema `json:"parameters" yaml:"parameters"`
}

// ParameterSchema describes a single tool parameter.
type ParameterSchema struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Required    bool   `json:"required" yaml:"required"`
}

// toolSchemaRegistry holds the schema definitions for all tools.
// These mirror the mcp.NewTool() definitions in registerTool.
var toolSchemaRegistry = map[string]ToolSchema{
	"sid_lookup": {
		Name:        "sid_lookup",
		Description: "Resolve the stable identifier bound to a semantic identifier in a class.",
		Parameters: []ParameterSchema{
			{Name: "class", Type: "string", Description: "Class name, e.g. PropertyValue", Required: true},
			{Name: "semantic_id", Type: "string", Description: "Semantic identifier to resolve", Required: true},
		},
	},
	"sid_reverse": {
		Name:        "sid_reverse",
		Description: "Resolve the semantic identifier currently bound to a stable identifier.",
		Parameters: []ParameterSchema{
			{Name: "class", Type: "string", Description: "Class name", Required: true},
			{Name: "uuid", Type: "string", Description: "Stable identifier to resolve", Required: true},
		},
	},
	"sid_class": {
		Name:        "sid_class",
		Description: "Return every semantic to stable identifier binding of a class.",
		Parameters: []ParameterSchema{
			{Name: "class", Type: "string", Description: "Class name", Required: true},
		},
	},
	"sid_classes": {
		Name:        "sid_classes",
		Description: "List the classes in the registry.",
		Parameters:  []ParameterSchema{},
	},
}

// GetToolSchemas returns schemas for all registered tools, sorted by name.
func (s *Server) GetToolSchemas() []ToolSchema {
	schemas := make([]ToolSchema, 0, len(s.tools))
	for _, name := range s.ListTools() {
		if schema, ok := toolSchemaRegistry[name]; ok {
			schemas = append(schemas, schema)
		}
	}
	return schemas
}

// CallTool dispatches a tool call by name with the given arguments.
// Returns the JSON result string or an error.
func (s *Server) CallTool(name string, args map[string]interface{}) (string, error) {
	s.mu.RLock()
	registered := s.tools[name]
	s.mu.RUnlock()

	if !registered {
		return "", fmt.Errorf("unknown tool: %s (run 'stableid call --list' to see available tools)", name)
	}

	switch name {
	case "sid_lookup":
		class, semantic := stringArg(args, "class"), stringArg(args, "semantic_id")
		if class == "" || semantic == "" {
			return "", fmt.Errorf("class and semantic_id parameters are required")
		}
		return s.executeLookup(class, semantic)

	case "sid_reverse":
		class, stable := stringArg(args, "class"), stringArg(args, "uuid")
		if class == "" || stable == "" {
			return "", fmt.Errorf("class and uuid parameters are required")
		}
		return s.executeReverse(class, stable)

	case "sid_class":
		class := stringArg(args, "class")
		if class == "" {
			return "", fmt.Errorf("class parameter is required")
		}
		return s.executeClass(class)

	case "sid_classes":
		return s.executeClasses()

	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

type lookupResult struct {
	Class      string `json:"class"`
	SemanticID string `json:"semantic_id"`
	UUID       string `json:"uuid,omitempty"`
	Found      bool   `json:"found"`
}

func (s *Server) executeLookup(class, semantic string) (string, error) {
	stable, ok, err := s.svc.GetUUID(class, semantic, false)
	if err != nil {
		return "", err
	}
	return toJSON(lookupResult{Class: class, SemanticID: semantic, UUID: stable, Found: ok})
}

func (s *Server) executeReverse(class, stable string) (string, error) {
	semantic, ok := s.svc.GetSemanticID(class, stable)
	return toJSON(lookupResult{Class: class, SemanticID: semantic, UUID: stable, Found: ok})
}

func (s *Server) executeClass(class string) (string, error) {
	return toJSON(struct {
		Class  string            `json:"class"`
		Exists bool              `json:"exists"`
		IDs    map[string]string `json:"ids"`
	}{class, s.svc.HasClass(class), s.svc.GetAllUUIDs(class)})
}

func (s *Server) executeClasses() (string, error) {
	classes := s.svc.ListClasses()
	return toJSON(struct {
		Classes []string `json:"classes"`
		Count   int      `json:"count"`
	}{classes, len(classes)})
}

// Helper functions

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func toJSON(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
