package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/deckhand-ai/deckhand/internal/core"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the configured model catalog",
	Long: `List every model in the catalog with its backend kind, tiers, and
whether it is currently usable (credentials present, host capable).`,
	RunE: runModels,
}

var modelsLocalOnly bool

func init() {
	rootCmd.AddCommand(modelsCmd)

	modelsCmd.Flags().BoolVar(&modelsLocalOnly, "local-only", false,
		"check availability as a local-only request would")
}

func runModels(_ *cobra.Command, _ []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	taskCtx := core.TaskContext{LocalOnly: modelsLocalOnly}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tSPEED\tQUALITY\tCAPABILITIES\tAVAILABLE")
	for _, m := range rt.models.List() {
		available := "no"
		if rt.models.IsAvailable(m, taskCtx) {
			available = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			m.Name, m.Kind, m.Speed, m.Quality, joinCapabilities(m.Capabilities), available)
	}
	return w.Flush()
}

func joinCapabilities(caps []string) string {
	if len(caps) == 0 {
		return "-"
	}
	out := caps[0]
	for _, c := range caps[1:] {
		out += "," + c
	}
	return out
}
