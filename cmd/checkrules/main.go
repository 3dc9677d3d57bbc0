// Command checkrules validates a rule definitions file without starting
// the gateway. Run it before deploying rule changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/droidagent/slack-gateway-go/internal/handler"
	"github.com/droidagent/slack-gateway-go/internal/rules"
)

func main() {
	rulesPath := flag.String("rules", "rules.yaml", "path to the rule definitions file")
	scriptsDir := flag.String("scripts", "scripts", "directory containing script handlers")
	promptsDir := flag.String("prompts", "prompts", "directory containing prompt files")
	flag.Parse()

	fmt.Printf("Checking %s\n", *rulesPath)

	defs, err := rules.ParseFile(*rulesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}

	registry := handler.NewRegistry(handler.RegistryConfig{
		ScriptsDir: *scriptsDir,
		PromptsDir: *promptsDir,
		// Resolution only stats prompt files; no API key needed here.
		PromptInvoker: noInvoker{},
	})

	set, err := rules.Load(defs, registry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}

	summary := set.Summarize()
	for _, def := range set.Definitions() {
		state := "enabled"
		if def.Enabled != nil && !*def.Enabled {
			state = "disabled"
		}
		fmt.Printf("✓ %-24s %-10s -> %s\n", def.Name, state, def.Handler)
	}
	fmt.Printf("\n%d rules (%d enabled, %d disabled)\n", summary.Total, summary.Enabled, summary.Disabled)
}

type noInvoker struct{}

func (noInvoker) Complete(_ context.Context, _, _ string) (string, error) {
	return "", fmt.Errorf("not available in checkrules")
}
