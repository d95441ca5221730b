package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/CodeChoreography/dicomity/internal/adapters/mcp"
	"github.com/CodeChoreography/dicomity/internal/config"
	"github.com/CodeChoreography/dicomity/internal/logging"
	"github.com/CodeChoreography/dicomity/internal/wiring"
)

func main() {
	configFlag := flag.String("config", "", "config file")
	rootsFlag := flag.String("roots", "", "comma-separated paths to scan on start")
	flag.Parse()

	cfg, err := config.Load(config.New(), *configFlag)
	if err != nil {
		log.Fatalf("dicomity-mcp: %v", err)
	}
	// stdout carries the protocol; logs go to stderr
	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("dicomity-mcp: %v", err)
	}
	defer logger.Sync()

	rt, err := wiring.New(cfg, logger)
	if err != nil {
		log.Fatalf("dicomity-mcp: %v", err)
	}
	if err := rt.Open(); err != nil {
		log.Fatalf("dicomity-mcp: %v", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Printf("dicomity-mcp: %v", err)
		}
	}()

	if *rootsFlag != "" {
		if _, err := rt.Session.Scan(context.Background(), strings.Split(*rootsFlag, ","), nil); err != nil {
			log.Fatalf("dicomity-mcp: initial scan: %v", err)
		}
	}

	mcpServer := server.NewMCPServer(
		"dicomity-mcp",
		"0.1.0",
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(
		mcp.NewTool("ping",
			mcp.WithDescription("Health check, returns pong"),
		),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("pong"), nil
		},
	)

	mcpadapter.RegisterReadTools(mcpServer, rt.Session)
	mcpadapter.RegisterScanTools(mcpServer, rt.Session)

	if err := server.ServeStdio(mcpServer); err != nil {
		log.Printf("dicomity-mcp: %v", err)
	}
}
