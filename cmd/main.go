package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/airbusgeo/godal"
	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/forest-guardian/cyp-cleaner/internal/artifact"
	"github.com/forest-guardian/cyp-cleaner/internal/dispatch"
	"github.com/forest-guardian/cyp-cleaner/internal/notification"
	"github.com/forest-guardian/cyp-cleaner/internal/properties"
	"github.com/forest-guardian/cyp-cleaner/internal/raster"
	"github.com/forest-guardian/cyp-cleaner/internal/region"
	"github.com/forest-guardian/cyp-cleaner/internal/yield"
	"github.com/forest-guardian/cyp-cleaner/output"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "dev"

var (
	verbose bool
	cfg     properties.Config
	logger  *zap.Logger

	// flag values, applied over the environment when set
	imagePath       string
	temperaturePath string
	maskPath        string
	yieldDataPath   string
	saveDir         string
	numYears        int
	parallel        bool
	processes       int
	parallelism     int
	deleteWhenDone  bool
	artifactFormat  string
	reportPath      string
	indexPath       string

	previewRegion string
	previewYear   int
	previewBand   int
	previewOut    string
)

func printBanner() {
	figure1 := figure.NewFigure("CYP", "isometric1", true)
	figure2 := figure.NewFigure("Cleaner", "isometric1", true)
	bannercolor.Cyan(figure1.String())
	bannercolor.Cyan(figure2.String())
	fmt.Println()
}

var rootCmd = &cobra.Command{
	Use:   "cypclean",
	Short: "Prepare per-county, per-year crop yield training tensors",
	Long: `cypclean turns multi-year MODIS reflectance, land surface temperature and
land cover rasters of US counties into one masked tensor per county and year
for which a yield record exists.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		properties.LoadEnv(".env", filepath.Join(properties.RootPath(), ".env"))
		cfg, err = properties.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		applyFlags(cmd)
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	str := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	str("image-path", &cfg.ImagePath, imagePath)
	str("temperature-path", &cfg.TemperaturePath, temperaturePath)
	str("mask-path", &cfg.MaskPath, maskPath)
	str("yield-data", &cfg.YieldDataPath, yieldDataPath)
	str("save-dir", &cfg.SaveDir, saveDir)
	str("format", &cfg.ArtifactFormat, artifactFormat)
	str("report", &cfg.ReportPath, reportPath)
	str("index", &cfg.IndexPath, indexPath)
	if flags.Changed("num-years") {
		cfg.NumYears = numYears
	}
	if flags.Changed("parallel") {
		cfg.Multiprocessing = parallel
	}
	if flags.Changed("processes") {
		cfg.Processes = processes
	}
	if flags.Changed("parallelism") {
		cfg.Parallelism = parallelism
	}
	if flags.Changed("delete-when-done") {
		cfg.DeleteWhenDone = deleteWhenDone
	}
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Clean every region found in the image directory",
	Args:  cobra.NoArgs,
	RunE:  runProcess,
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render one band of one region-year as an image, without writing artifacts",
	Args:  cobra.NoArgs,
	RunE:  runPreview,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("cypclean", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&imagePath, "image-path", "", "Directory of reflectance rasters (CYP_IMAGE_PATH)")
	rootCmd.PersistentFlags().StringVar(&temperaturePath, "temperature-path", "", "Directory of temperature rasters (CYP_TEMPERATURE_PATH)")
	rootCmd.PersistentFlags().StringVar(&maskPath, "mask-path", "", "Directory of land cover rasters (CYP_MASK_PATH)")
	rootCmd.PersistentFlags().IntVar(&numYears, "num-years", 14, "Number of years, starting at 2003 (CYP_NUM_YEARS)")

	processCmd.Flags().StringVar(&yieldDataPath, "yield-data", "", "Yield table CSV (CYP_YIELD_DATA_PATH)")
	processCmd.Flags().StringVar(&saveDir, "save-dir", "", "Artifact directory (CYP_SAVE_DIR)")
	processCmd.Flags().BoolVar(&parallel, "parallel", true, "Process regions on a worker pool (CYP_MULTIPROCESSING)")
	processCmd.Flags().IntVar(&processes, "processes", 4, "Worker pool size (CYP_PROCESSES)")
	processCmd.Flags().IntVar(&parallelism, "parallelism", 6, "Chunks per worker (CYP_PARALLELISM)")
	processCmd.Flags().BoolVar(&deleteWhenDone, "delete-when-done", false, "Remove source rasters of successful regions (CYP_DELETE_WHEN_DONE)")
	processCmd.Flags().StringVar(&artifactFormat, "format", "", "Artifact format, npy or gtiff (CYP_ARTIFACT_FORMAT)")
	processCmd.Flags().StringVar(&reportPath, "report", "", "Failure report CSV (CYP_REPORT_PATH)")
	processCmd.Flags().StringVar(&indexPath, "index", "", "Write a GeoJSON index of processed regions (CYP_INDEX_PATH)")

	previewCmd.Flags().StringVar(&previewRegion, "region", "", "Region file name, e.g. 17_19.tif")
	previewCmd.Flags().IntVar(&previewYear, "year", region.StartYear, "Calendar year")
	previewCmd.Flags().IntVar(&previewBand, "band", 0, "Band of the year tensor")
	previewCmd.Flags().StringVar(&previewOut, "out", "", "Output image (.png or .jpeg)")
	previewCmd.MarkFlagRequired("region")
	previewCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	godal.RegisterAll()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printBanner()
	discord := notification.NewDiscord(properties.DiscordErrorNotificationUrl(), properties.DiscordSuccessNotificationUrl())

	ids, err := raster.ListRegions(cfg.ImagePath)
	if err != nil {
		return notifyFailure(discord, err)
	}
	yields, err := yield.Load(cfg.YieldDataPath)
	if err != nil {
		return notifyFailure(discord, err)
	}
	store, err := artifact.Open(cfg.SaveDir, artifact.Format(cfg.ArtifactFormat))
	if err != nil {
		return notifyFailure(discord, err)
	}
	logger.Info("Starting cleaning",
		zap.Int("regions", len(ids)),
		zap.Int("yield_records", yields.Len()),
		zap.Int("num_years", cfg.NumYears),
		zap.String("save_dir", cfg.SaveDir),
		zap.String("format", cfg.ArtifactFormat))

	reader := raster.NewGDALReader(cfg.ImagePath, cfg.TemperaturePath, cfg.MaskPath)
	proc := region.NewProcessor(reader, store, yields, cfg.NumYears,
		region.WithDeleteWhenDone(cfg.DeleteWhenDone),
		region.WithLogger(logger))

	mode := dispatch.Sequential
	if cfg.Multiprocessing {
		mode = dispatch.Parallel
	}
	report := dispatch.Run(ctx, ids, proc, dispatch.Options{
		Mode:        mode,
		PoolSize:    cfg.Processes,
		Parallelism: cfg.Parallelism,
		Logger:      logger,
		Progress:    true,
	})

	fmt.Println()
	report.Print(os.Stdout)
	if err := report.WriteCSV(cfg.ReportPath); err != nil {
		logger.Warn("Failed to write failure report", zap.Error(err))
	} else if len(report.Failures) > 0 {
		bannercolor.Yellow("Failure report written to %s", cfg.ReportPath)
	}

	if cfg.IndexPath != "" {
		if err := writeIndex(reader, report); err != nil {
			logger.Warn("Failed to write region index", zap.Error(err))
		}
	}

	if err := discord.SendBatchSummary(report.Summary(), len(report.Failures)); err != nil {
		logger.Warn("Failed to send notification", zap.Error(err))
	}
	return ctx.Err()
}

func notifyFailure(discord *notification.Discord, err error) error {
	if nerr := discord.SendError(fmt.Sprintf("CYP Cleaner\n\n%s", err)); nerr != nil {
		logger.Warn("Failed to send notification", zap.Error(nerr))
	}
	return err
}

func writeIndex(locator raster.Locator, report *dispatch.Report) error {
	if cfg.DeleteWhenDone {
		return errors.New("source rasters were removed, footprints are unavailable")
	}
	footprints := make([]output.RegionFootprint, 0, len(report.Results))
	for _, res := range report.Results {
		bound, err := locator.Footprint(res.RegionID)
		if err != nil {
			logger.Warn("Skipping region in index", zap.String("region", res.RegionID), zap.Error(err))
			continue
		}
		years := make([]int, len(res.Written))
		for i, k := range res.Written {
			years[i] = k.Year
		}
		footprints = append(footprints, output.RegionFootprint{
			RegionID: res.RegionID,
			Region:   res.Region,
			Bound:    bound,
			Years:    years,
		})
	}
	if err := output.WriteRegionIndex(cfg.IndexPath, footprints); err != nil {
		return err
	}
	logger.Info("Region index written", zap.String("path", cfg.IndexPath), zap.Int("regions", len(footprints)))
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	year := previewYear - region.StartYear
	if year < 0 || year >= cfg.NumYears {
		return fmt.Errorf("year %d is outside %d-%d", previewYear, region.StartYear, region.StartYear+cfg.NumYears-1)
	}

	reader := raster.NewGDALReader(cfg.ImagePath, cfg.TemperaturePath, cfg.MaskPath)
	proc := region.NewProcessor(reader, nil, yield.NewTable(), cfg.NumYears, region.WithLogger(logger))
	computed, err := proc.Compute(ctx, previewRegion)
	if err != nil {
		return err
	}
	if err := output.RenderPreview(computed.Years[year].Tensor, previewBand, previewOut); err != nil {
		return err
	}
	bannercolor.Green("Preview of %s written to %s", computed.Years[year].Key, previewOut)
	return nil
}
