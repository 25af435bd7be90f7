package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
)

// TraceCmd renders a Markdown trace file (written by a Run's --trace flag)
// with glamour, for readable terminal viewing instead of raw Markdown.
type TraceCmd struct {
	Path  string `arg:"" help:"Path to a trace file written by 'agentflow run --trace'." type:"path"`
	Width int    `help:"Wrap width; 0 uses the terminal width." default:"0"`
	Plain bool   `help:"Print the trace file unrendered."`
}

func (c *TraceCmd) Run(cli *CLI) error {
	raw, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("read trace: %w", err)
	}

	if c.Plain {
		fmt.Print(string(raw))
		return nil
	}

	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if c.Width > 0 {
		opts = append(opts, glamour.WithWordWrap(c.Width))
	} else {
		opts = append(opts, glamour.WithWordWrap(100))
	}

	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return fmt.Errorf("build renderer: %w", err)
	}

	out, err := renderer.Render(string(raw))
	if err != nil {
		return fmt.Errorf("render trace: %w", err)
	}

	fmt.Print(strings.TrimSpace(out))
	fmt.Println()
	return nil
}
