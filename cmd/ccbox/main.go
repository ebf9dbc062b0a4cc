package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/diskd-ai/ccbox/internal/cliapp"
	"github.com/diskd-ai/ccbox/internal/tui"
)

var version = "0.1.0"

// cliCommands are the names cliapp.Run understands; anything else falls
// through to the interactive dashboard.
var cliCommands = map[string]bool{
	"projects": true,
	"sessions": true,
	"history":  true,
	"skills":   true,
}

func main() {
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.BoolVar(versionFlag, "v", false, "print version and exit (short)")
	flag.Usage = printUsage
	flag.Parse()

	if *versionFlag {
		fmt.Printf("ccbox %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) > 0 && cliCommands[args[0]] {
		// With SIGPIPE ignored, writing to a closed stdout (`ccbox history |
		// head`) returns EPIPE, which cliapp's pipeWriter absorbs.
		signal.Ignore(syscall.SIGPIPE)
		os.Exit(cliapp.Run(args, os.Stdout, os.Stderr))
	}

	runDashboard()
}

func runDashboard() {
	model, err := tui.NewDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ccbox: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseAllMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "ccbox: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ccbox %s

A dashboard and CLI for Codex, Claude Code, Gemini, and OpenCode session
logs, and a supervisor for locally spawned agent processes.

Usage:
  ccbox                   launch the interactive dashboard
  ccbox <command> [flags] run a CLI subcommand (projects, sessions, history, skills)
  ccbox -version          print version and exit

Run 'ccbox <command> -h' for a subcommand's flags.
`, version)
}
