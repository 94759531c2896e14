package main

import (
	"context"
	"fmt"
	"github.com/dzfranklin/sossml2gpkg"
	"github.com/spf13/pflag"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"strings"
	"time"
)

func usageAndDie() {
	fmt.Println("Example usage:\n" +
		"    sossml2gpkg\n" +
		"    sossml2gpkg --config <providers.yaml>\n" +
		"    sossml2gpkg --provider nanoos --endpoint <sos_url> --stations <urn>,<urn>\n" +
		"    sossml2gpkg --provider nanoos --clip-feature <feature_geojson.json> --csv --geojson")
	os.Exit(1)
}

func main() {
	configPath := pflag.String("config", "", "YAML file listing providers and run settings")
	provider := pflag.StringP("provider", "p", "", "Only harvest this provider label")
	endpoint := pflag.StringP("endpoint", "e", "", "SOS endpoint for --provider (overrides the config)")
	stations := pflag.StringSliceP("stations", "s", nil, "Harvest only these station URNs")
	outDir := pflag.StringP("out", "o", "", "Directory to write output to")

	writeCSV := pflag.Bool("csv", false, "Also write a CSV copy of each layer")
	writeGeoJSON := pflag.Bool("geojson", false, "Also write a GeoJSON copy of each layer")
	clipFeaturePath := pflag.String("clip-feature", "", "Only keep stations inside the GeoJSON feature in the file specified")
	activeSince := pflag.String("active-since", "", "Report how many stations reported data after this date (YYYY-MM-DD)")

	skipFailed := pflag.Bool("skip-failed", false, "Skip stations that cannot be fetched or parsed instead of aborting")
	forceMode := pflag.BoolP("force-valid", "f", false, "Drop stations that fail validation")
	ignoreInvalidMode := pflag.Bool("ignore-invalid", false, "Ignore any validation issues")

	concurrency := pflag.Int("concurrency", 0, "DescribeSensor requests in flight")
	retries := pflag.Int("retries", -1, "Retries per failed DescribeSensor request")
	timeout := pflag.Duration("timeout", 0, "Timeout per request")

	pflag.Parse()

	if *endpoint != "" && *provider == "" {
		usageAndDie()
	}
	if *forceMode && *ignoreInvalidMode {
		usageAndDie()
	}

	cfg := sossml2gpkg.DefaultConfig()
	var err error
	if *configPath != "" {
		cfg, err = sossml2gpkg.LoadConfig(*configPath)
		if err != nil {
			fmt.Printf("Error: %s\n", err)
			os.Exit(1)
		}
	}
	if *provider != "" {
		if *endpoint != "" {
			cfg.Providers = map[string]string{*provider: *endpoint}
		} else if url, ok := cfg.Providers[*provider]; ok {
			cfg.Providers = map[string]string{*provider: url}
		} else {
			fmt.Printf("Error: unknown provider %s\n", *provider)
			os.Exit(1)
		}
	}
	if len(*stations) > 0 {
		cfg.Stations = *stations
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}
	if *concurrency > 0 {
		cfg.Concurrency = *concurrency
	}
	if *retries >= 0 {
		cfg.Retries = *retries
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}

	var clipFeature string
	if *clipFeaturePath != "" {
		feature, err := os.ReadFile(*clipFeaturePath)
		if err != nil {
			panic(err)
		}
		clipFeature = string(feature)
	}

	var cutoff time.Time
	if *activeSince != "" {
		cutoff, err = time.Parse(time.DateOnly, *activeSince)
		if err != nil {
			usageAndDie()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := &sossml2gpkg.HarvestOpts{
		SkipFailed:    *skipFailed,
		ForceValid:    *forceMode,
		IgnoreInvalid: *ignoreInvalidMode,
	}

	for _, label := range cfg.ProviderLabels() {
		err = run(ctx, cfg, label, opts, clipFeature, cutoff, *writeCSV, *writeGeoJSON)
		if err != nil {
			break
		}
	}

	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	} else {
		fmt.Println("All done")
	}
}

func run(ctx context.Context, cfg sossml2gpkg.Config, label string, opts *sossml2gpkg.HarvestOpts,
	clipFeature string, cutoff time.Time, writeCSV, writeGeoJSON bool) error {
	client := cfg.Client(label)

	var result *sossml2gpkg.Result
	var err error
	if len(cfg.Stations) > 0 {
		result, err = sossml2gpkg.HarvestStations(ctx, client, cfg.Stations, opts)
	} else {
		result, err = sossml2gpkg.HarvestCatalog(ctx, client, opts)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	for _, failure := range result.Failed {
		slog.Warn(fmt.Sprintf("%s: skipped %s: %s", label, failure.URN, failure.Err))
	}

	table := result.Table
	if clipFeature != "" {
		table, err = sossml2gpkg.Clip(table, clipFeature)
		if err != nil {
			return err
		}
	}

	if !cutoff.IsZero() {
		active := sossml2gpkg.CountActive(table.Records, cutoff)
		slog.Info(fmt.Sprintf("%s: %d of %d stations reported data after %s",
			label, active, table.Len(), cutoff.Format(time.DateOnly)))
	}

	outputPath := sossml2gpkg.OutputPath(cfg.OutputDir, label)
	if err := sossml2gpkg.WriteGeoPackage(outputPath, sossml2gpkg.LayerName(label), table); err != nil {
		return err
	}
	if writeCSV {
		if err := sossml2gpkg.ExportCSV(outputPath, trimFileExt(outputPath)+".csv"); err != nil {
			return err
		}
	}
	if writeGeoJSON {
		if err := sossml2gpkg.ExportGeoJSON(outputPath, trimFileExt(outputPath)+".geojson"); err != nil {
			return err
		}
	}
	return nil
}

func trimFileExt(name string) string {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext)
}
