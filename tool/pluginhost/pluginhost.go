// Package pluginhost loads tool.Definitions from an out-of-process plugin
// binary over hashicorp/go-plugin's net/rpc transport: one subprocess can
// expose many named tools, each dispatched through a single Execute RPC.
package pluginhost

import (
	"context"
	"encoding/json"
	"fmt"
	"net/rpc"
	"os/exec"

	plugin "github.com/hashicorp/go-plugin"

	"github.com/agentflowhq/agentflow/tool"
)

// Handshake must match between host and plugin binary; bumping ProtocolVersion
// is a breaking change for every plugin built against this package.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "AGENTFLOW_TOOL_PLUGIN",
	MagicCookieValue: "agentflow",
}

// ToolSpec is the wire shape of one plugin-advertised tool, mirroring
// tool.Definition minus its Handler (which stays host-side, proxying to the
// plugin's Execute RPC).
type ToolSpec struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// ExecuteArgs/ExecuteReply are the net/rpc request/response pair for
// dispatching a single tool call into the plugin process.
type ExecuteArgs struct {
	Name      string
	Arguments json.RawMessage
}

type ExecuteReply struct {
	Result json.RawMessage
	Err    string // empty on success; net/rpc can't carry typed errors
}

// Provider is what a plugin binary implements and registers via Serve.
type Provider interface {
	Tools() ([]ToolSpec, error)
	Execute(args ExecuteArgs) (ExecuteReply, error)
}

// Serve runs the plugin binary's main loop, blocking until the host
// disconnects. Call this from a plugin binary's main(), never from the host.
func Serve(impl Provider) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			"tools": &toolPlugin{impl: impl},
		},
	})
}

// toolPlugin is the plugin.Plugin implementation shared by host and plugin.
type toolPlugin struct {
	impl Provider
}

func (p *toolPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &rpcServer{impl: p.impl}, nil
}

func (p *toolPlugin) Client(_ *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &rpcClient{client: c}, nil
}

type rpcServer struct {
	impl Provider
}

func (s *rpcServer) Tools(_ struct{}, reply *[]ToolSpec) error {
	specs, err := s.impl.Tools()
	if err != nil {
		return err
	}
	*reply = specs
	return nil
}

func (s *rpcServer) Execute(args ExecuteArgs, reply *ExecuteReply) error {
	r, err := s.impl.Execute(args)
	if err != nil {
		return err
	}
	*reply = r
	return nil
}

type rpcClient struct {
	client *rpc.Client
}

func (c *rpcClient) Tools() ([]ToolSpec, error) {
	var reply []ToolSpec
	if err := c.client.Call("Plugin.Tools", struct{}{}, &reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *rpcClient) Execute(args ExecuteArgs) (ExecuteReply, error) {
	var reply ExecuteReply
	if err := c.client.Call("Plugin.Execute", args, &reply); err != nil {
		return ExecuteReply{}, err
	}
	return reply, nil
}

// Host manages one plugin subprocess and exposes its tools as
// tool.Definitions.
type Host struct {
	client *plugin.Client
	rpc    *rpcClient
}

// Launch starts the plugin binary at path and performs the handshake. The
// returned Host must be closed with Close when no longer needed.
func Launch(path string, args ...string) (*Host, error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins:         map[string]plugin.Plugin{"tools": &toolPlugin{}},
		Cmd:             exec.Command(path, args...),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("pluginhost: connect to %s: %w", path, err)
	}

	raw, err := rpcClient.Dispense("tools")
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("pluginhost: dispense tools from %s: %w", path, err)
	}

	impl, ok := raw.(*rpcClient)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("pluginhost: %s did not return a tools plugin client", path)
	}

	return &Host{client: client, rpc: impl}, nil
}

// Definitions lists every tool the plugin advertises, each wired to call
// back into the plugin process on Execute.
func (h *Host) Definitions() ([]tool.Definition, error) {
	specs, err := h.rpc.Tools()
	if err != nil {
		return nil, fmt.Errorf("pluginhost: list tools: %w", err)
	}

	defs := make([]tool.Definition, len(specs))
	for i, spec := range specs {
		spec := spec
		defs[i] = tool.Definition{
			Name:        spec.Name,
			Description: spec.Description,
			Schema:      spec.Schema,
			Handler:     h.handlerFor(spec.Name),
		}
	}
	return defs, nil
}

func (h *Host) handlerFor(name string) tool.Handler {
	return func(_ context.Context, arguments json.RawMessage) (json.RawMessage, error) {
		reply, err := h.rpc.Execute(ExecuteArgs{Name: name, Arguments: arguments})
		if err != nil {
			return nil, fmt.Errorf("pluginhost: execute %q: %w", name, err)
		}
		if reply.Err != "" {
			return nil, fmt.Errorf("%s", reply.Err)
		}
		return reply.Result, nil
	}
}

// Close terminates the plugin subprocess.
func (h *Host) Close() {
	h.client.Kill()
}
