// Package mcp exposes the pattern service over the Model Context
// Protocol so coding agents can query and curate the knowledge base.
package mcp

import (
	"context"

	mcpgo "github.com/felixgeelhaar/mcp-go"

	"github.com/driftdev/drift/application"
)

// Server wraps an MCP server over the pattern service.
type Server struct {
	srv     *mcpgo.Server
	service *application.Service
	info    mcpgo.ServerInfo
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	// Name is the server name announced to clients.
	Name string

	// Version is the server version.
	Version string

	// Service is the pattern service the tools operate on.
	Service *application.Service

	// Instructions provides usage instructions for clients.
	Instructions string
}

// NewServer creates an MCP server exposing the drift tool set.
func NewServer(cfg ServerConfig) *Server {
	info := mcpgo.ServerInfo{
		Name:    cfg.Name,
		Version: cfg.Version,
		Capabilities: mcpgo.Capabilities{
			Tools: true,
		},
	}

	var opts []mcpgo.Option
	if cfg.Instructions != "" {
		opts = append(opts, mcpgo.WithInstructions(cfg.Instructions))
	}

	s := &Server{
		srv:     mcpgo.NewServer(info, opts...),
		service: cfg.Service,
		info:    info,
	}
	s.registerTools()
	return s
}

// Server returns the underlying mcp-go server.
func (s *Server) Server() *mcpgo.Server {
	return s.srv
}

// ServeStdio runs the server over stdin/stdout.
func (s *Server) ServeStdio(ctx context.Context, opts ...mcpgo.ServeOption) error {
	return mcpgo.ServeStdio(ctx, s.srv, opts...)
}

// ServeHTTP runs the server over HTTP with SSE.
func (s *Server) ServeHTTP(ctx context.Context, addr string, opts ...mcpgo.HTTPOption) error {
	return mcpgo.ServeHTTP(ctx, s.srv, addr, opts...)
}
