package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqicast/aqicast/internal/api/models"
	"github.com/aqicast/aqicast/internal/app"
	"github.com/aqicast/aqicast/internal/prediction"
)

var forecastFlags struct {
	pointFlags
	model string
	store bool
}

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Run the 8/12/24 hour AQI forecast for a location",
	Long: `Fetch history for a location, normalize it to 48 hours and run the
selected backend. Use --offline to forecast from mock data.`,
	Args: cobra.NoArgs,
	RunE: runForecast,
}

func init() {
	forecastFlags.register(forecastCmd, 48)
	forecastCmd.Flags().StringVar(&forecastFlags.model, "model", "xgboost", "backend from the model registry")
	forecastCmd.Flags().BoolVar(&forecastFlags.store, "store", false, "record the forecast in the configured database")
	rootCmd.AddCommand(forecastCmd)
}

func runForecast(cmd *cobra.Command, _ []string) error {
	q := forecastFlags.query(cmd)
	if err := q.Validate(); err != nil {
		return err
	}

	stack, err := app.Build(cmd.Context(), cfg, app.Options{
		Logger:       logger,
		Offline:      forecastFlags.offline,
		SkipDatabase: !forecastFlags.store,
	})
	if err != nil {
		return err
	}
	defer stack.Close()

	f, err := stack.Forecasts.PredictLive(cmd.Context(), forecastFlags.model, q)
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(cmd.OutOrStdout(), models.NewPredictionResponse(f))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s forecast for %.4f,%.4f (%s data, %d hours)\n",
		f.Result.Model, f.Location.Lat, f.Location.Lon, f.Source, f.InputHours)
	fmt.Fprintf(out, "  now  AQI %3.0f  %s (%s)\n", f.Current.AQI, f.Current.Category, f.Current.Trend)
	for _, h := range prediction.Horizons {
		hf := f.Result.At(h)
		fmt.Fprintf(out, "  %-4s AQI %3.0f  %s\n", h, hf.AQI, hf.Category)
	}
	note := ""
	if f.Result.Fallback {
		note = " (fallback estimate)"
	}
	_, err = fmt.Fprintf(out, "  confidence %.2f%s\n", f.Result.Confidence, note)
	return err
}
