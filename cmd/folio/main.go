package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/hpungsan/folio/internal/config"
	"github.com/hpungsan/folio/internal/gallery"
	"github.com/hpungsan/folio/internal/mcp"
	"github.com/hpungsan/folio/internal/web"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"serve": true, "format": true, "inspect": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	color.New(color.FgCyan, color.Bold).Println(`
    __       _ _
   / _| ___ | (_) ___
  | |_ / _ \| | |/ _ \
  |  _| (_) | | | (_) |
  |_|  \___/|_|_|\___/`)
	fmt.Println(`
  Infinite-depth image gallery

  Usage: folio serve [--bind ADDR] [--port N]
         folio --help`)
	color.New(color.FgYellow).Println("\n  MCP server mode requires piped input.")
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before loading config
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine working directory: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadWithRepo(filepath.Join(homeDir, ".folio"), cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Warn("ignoring unknown disabled tools", zap.Strings("tools", unknown))
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(cfg, log)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'folio --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default). The gallery page is served alongside so
	// edits made through tools can be seen.
	if err := runMCP(cfg, log); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// runMCP serves the tools over stdio with the gallery page alongside. The
// page stops when the tools do; the host is torn down once, here.
func runMCP(cfg *config.Config, log *zap.Logger) error {
	host := gallery.NewHost(cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	webDone := make(chan struct{})
	go func() {
		defer close(webDone)
		srv := web.NewServer(host, Version, log.Named("web"))
		if _, err := web.Serve(ctx, srv, log.Named("web")); err != nil {
			log.Warn("gallery page unavailable", zap.Error(err))
		}
	}()

	err := mcp.Run(host, Version)
	cancel()
	<-webDone
	host.Teardown()
	return err
}
