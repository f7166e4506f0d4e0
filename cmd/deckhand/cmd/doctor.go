package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deckhand-ai/deckhand/internal/core"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check host capabilities and model readiness",
	Long: `Probe the host (memory, GPUs) and report which catalog models the
machine can actually run.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(_ *cobra.Command, _ []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	caps := rt.probe.Capabilities()
	fmt.Println("Host capabilities:")
	fmt.Println()
	if caps.TotalMemoryMB == 0 {
		fmt.Println("  ? memory probe unavailable")
	} else {
		fmt.Printf("  memory: %d MB total, %d MB available\n",
			caps.TotalMemoryMB, caps.AvailableMemoryMB)
	}
	if caps.HasGPU {
		for _, gpu := range caps.GPUs {
			fmt.Printf("  gpu: %s\n", gpu)
		}
	} else {
		fmt.Println("  gpu: none detected")
	}

	fmt.Println()
	fmt.Println("Catalog readiness:")
	fmt.Println()

	allOk := true
	for _, m := range rt.models.List() {
		icon := "✓"
		note := ""
		if !rt.models.IsAvailable(m, core.TaskContext{}) {
			icon = "✗"
			note = unavailableReason(m, caps.HasGPU)
			allOk = false
		}
		fmt.Printf("  %s %s (%s)%s\n", icon, m.Name, m.Kind, note)
	}

	fmt.Println()
	if !allOk {
		fmt.Println("Some models are not usable on this host. Decks still generate:")
		fmt.Println("routing falls back to the remaining catalog.")
		os.Exit(1)
	}
	fmt.Println("All catalog models are usable.")
	return nil
}

func unavailableReason(m core.ModelDescriptor, hasGPU bool) string {
	switch {
	case m.RequiresGPU && !hasGPU:
		return " - requires a GPU"
	case m.Kind == core.BackendCloud && m.APIKeyEnv != "":
		return fmt.Sprintf(" - set %s", m.APIKeyEnv)
	case m.MinMemoryMB > 0:
		return fmt.Sprintf(" - needs %d MB free memory", m.MinMemoryMB)
	default:
		return ""
	}
}
