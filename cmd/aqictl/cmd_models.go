package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aqicast/aqicast/internal/api/models"
	"github.com/aqicast/aqicast/internal/prediction"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the forecasting backends in the model registry",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, _ []string) error {
	registry, err := prediction.LoadRegistry(cfg.ModelRegistryPath, prediction.LoadOptions{Logger: logger})
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(cmd.OutOrStdout(), models.NewModelsResponse(registry.Models(), registry.Available()))
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tSTATUS\tBEST FOR")
	for _, m := range registry.Models() {
		status := "loaded"
		if !m.Loaded {
			status = "unavailable: " + m.LoadError
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Name, m.Kind, status, m.BestFor)
	}
	return tw.Flush()
}
