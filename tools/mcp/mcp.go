// Package mcp connects external MCP server subprocesses and exposes their
// tools through the agent's dispatch table.
package mcp

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/t0mczak/orbit/errors"
)

// Client manages the connection to a single MCP server subprocess.
type Client struct {
	Name  string
	cmd   *exec.Cmd
	conn  *mcpsdk.ClientSession
	tools []*ServerTool
	log   zerolog.Logger
}

// NewClient starts the server subprocess, connects over stdio and discovers
// the tools it provides.
func NewClient(log zerolog.Logger, name, command string, args []string) (*Client, error) {
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr

	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "orbit", Version: "v1.0.0"}, nil)
	ctx := context.Background()
	conn, err := mcpClient.Connect(ctx, mcpsdk.NewCommandTransport(cmd))
	if err != nil {
		cmd.Process.Kill()
		return nil, errors.Wrapf(err, "failed to connect to MCP server '%s'", name)
	}

	client := &Client{Name: name, cmd: cmd, conn: conn, log: log}

	listParams := &mcpsdk.ListToolsParams{}
	for {
		toolList, err := conn.ListTools(ctx, listParams)
		if err != nil {
			cmd.Process.Kill()
			return nil, errors.Wrapf(err, "failed to list tools from MCP server '%s'", name)
		}
		for _, t := range toolList.Tools {
			client.tools = append(client.tools, &ServerTool{
				serverName:  name,
				toolName:    t.Name,
				description: t.Description,
				schema:      schemaToMap(t.InputSchema),
				client:      client,
			})
		}
		if toolList.NextCursor == "" {
			break
		}
		listParams.Cursor = toolList.NextCursor
	}

	log.Info().Str("server", name).Int("tools", len(client.tools)).Msg("mcp server connected")
	return client, nil
}

// Tools returns the discovered server tools in discovery order.
func (c *Client) Tools() []*ServerTool {
	return append([]*ServerTool(nil), c.tools...)
}

// Stop closes the session and terminates the server subprocess.
func (c *Client) Stop() error {
	if c.conn != nil {
		c.conn.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		c.log.Info().Str("server", c.Name).Msg("terminating mcp server")
		return c.cmd.Process.Kill()
	}
	return nil
}

// schemaToMap converts the server-declared input schema into the plain map
// form the dispatch table advertises to the model.
func schemaToMap(schema interface{}) map[string]interface{} {
	fallback := map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	if schema == nil {
		return fallback
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return fallback
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return fallback
	}
	return out
}

// ServerTool adapts one MCP server tool to the agent's Tool interface.
type ServerTool struct {
	serverName  string
	toolName    string
	description string
	schema      map[string]interface{}
	client      *Client
}

func (t *ServerTool) Name() string { return t.toolName }

func (t *ServerTool) Description() string { return t.description }

func (t *ServerTool) Schema() map[string]interface{} { return t.schema }

func (t *ServerTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	result, err := t.client.conn.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.toolName,
		Arguments: args,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call tool '%s' on MCP server '%s'", t.toolName, t.serverName)
	}

	text := ""
	for _, content := range result.Content {
		if tc, ok := content.(*mcpsdk.TextContent); ok {
			text += tc.Text
		}
	}
	return map[string]interface{}{"content": text}, nil
}
