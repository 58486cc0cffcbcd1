package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqicast/aqicast/internal/airquality"
	"github.com/aqicast/aqicast/internal/api/models"
)

var aqiFlags struct {
	pm25, pm10, co, o3, no2, so2 float64
	profile                      string
}

var aqiCmd = &cobra.Command{
	Use:   "aqi",
	Short: "Compute the AQI for a set of concentrations",
	Long: `Compute the AQI from PM2.5 with secondary pollutant bonuses.
Concentrations are µg/m³ except --co, which is mg/m³.`,
	Args: cobra.NoArgs,
	RunE: runAQI,
}

func init() {
	f := aqiCmd.Flags()
	f.Float64Var(&aqiFlags.pm25, "pm25", 0, "PM2.5 (µg/m³)")
	f.Float64Var(&aqiFlags.pm10, "pm10", 0, "PM10 (µg/m³)")
	f.Float64Var(&aqiFlags.co, "co", 0, "carbon monoxide (mg/m³)")
	f.Float64Var(&aqiFlags.o3, "o3", 0, "ozone (µg/m³)")
	f.Float64Var(&aqiFlags.no2, "no2", 0, "nitrogen dioxide (µg/m³)")
	f.Float64Var(&aqiFlags.so2, "so2", 0, "sulphur dioxide (µg/m³)")
	f.StringVar(&aqiFlags.profile, "profile", airquality.DefaultProfile.Name, "bonus profile (default, extended)")
	_ = aqiCmd.MarkFlagRequired("pm25")

	rootCmd.AddCommand(aqiCmd)
}

func runAQI(cmd *cobra.Command, _ []string) error {
	profile, ok := airquality.ProfileByName(aqiFlags.profile)
	if !ok {
		return fmt.Errorf("unknown profile %q", aqiFlags.profile)
	}

	p := airquality.Pollutants{
		PM25: aqiFlags.pm25,
		PM10: aqiFlags.pm10,
		CO:   airquality.COFromMilligrams(aqiFlags.co),
		O3:   aqiFlags.o3,
		NO2:  aqiFlags.no2,
		SO2:  aqiFlags.so2,
	}
	for name, v := range map[string]float64{
		"pm25": p.PM25, "pm10": p.PM10, "co": p.CO, "o3": p.O3, "no2": p.NO2, "so2": p.SO2,
	} {
		if v < 0 {
			return fmt.Errorf("--%s must not be negative", name)
		}
	}

	aqi := airquality.NewCalculator(profile).Calculate(p)
	if asJSON {
		return printJSON(cmd.OutOrStdout(), models.NewAQIResponse(aqi, profile.Name, time.Now()))
	}

	_, err := fmt.Fprintf(cmd.OutOrStdout(), "AQI %.0f (%s)\n", aqi, airquality.CategoryFor(aqi))
	return err
}
