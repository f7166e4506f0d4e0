package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deckhand-ai/deckhand/internal/core"
	"github.com/deckhand-ai/deckhand/internal/orchestrator"
)

var generateCmd = &cobra.Command{
	Use:   "generate [topic]",
	Short: "Generate a slide deck for a topic",
	Long: `Run the full pipeline once and print the resulting deck as JSON.

Examples:
  # Ten slides on a topic, written to stdout
  deckhand generate "Intro to Kubernetes"

  # A short executive briefing saved to a file
  deckhand generate "Q3 Roadmap" --slides 6 --audience executive -o roadmap.json

  # Keep everything on local models
  deckhand generate "Incident Review" --policy local-only --local-only`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

var (
	genSlides    int
	genAudience  string
	genTone      string
	genTheme     string
	genPolicy    string
	genLocalOnly bool
	genPriority  string
	genOutput    string
)

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().IntVarP(&genSlides, "slides", "n", 0,
		"body slide count (default from config)")
	generateCmd.Flags().StringVar(&genAudience, "audience", "general",
		"target audience (general, technical, executive, ...)")
	generateCmd.Flags().StringVar(&genTone, "tone", "professional",
		"writing tone")
	generateCmd.Flags().StringVar(&genTheme, "theme", "default",
		"deck theme name")
	generateCmd.Flags().StringVar(&genPolicy, "policy", "",
		"routing policy (default from config)")
	generateCmd.Flags().BoolVar(&genLocalOnly, "local-only", false,
		"restrict routing to local and simulated models")
	generateCmd.Flags().StringVar(&genPriority, "priority", "",
		"model ranking priority (quality, speed, cost, balanced)")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "",
		"write the deck JSON to a file instead of stdout")
}

func runGenerate(_ *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "interrupted, stopping at the next stage boundary...")
		cancel()
	}()

	req := buildRequest(rt, args[0])
	deck, err := rt.pipeline.Generate(ctx, req)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(deck, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding deck: %w", err)
	}
	data = append(data, '\n')

	if genOutput != "" {
		if err := os.WriteFile(genOutput, data, 0o644); err != nil {
			return fmt.Errorf("writing deck: %w", err)
		}
		fmt.Fprintf(os.Stderr, "deck written to %s (%d slides, score %.2f)\n",
			genOutput, len(deck.Slides), deck.Metadata.OverallScore)
		return nil
	}

	_, err = os.Stdout.Write(data)
	return err
}

func buildRequest(rt *runtime, topic string) orchestrator.Request {
	slides := genSlides
	if slides == 0 {
		slides = rt.cfg.Generation.DefaultSlides
	}
	policy := genPolicy
	if policy == "" {
		policy = rt.cfg.Generation.DefaultPolicy
	}
	return orchestrator.Request{
		Topic:      topic,
		SlideCount: slides,
		Audience:   genAudience,
		Tone:       genTone,
		Theme:      genTheme,
		Policy:     policy,
		LocalOnly:  genLocalOnly || rt.cfg.Generation.LocalOnly,
		Priority:   core.Priority(genPriority),
	}
}
