package properties

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

func RootPath() string {
	if root := os.Getenv("ROOT_PATH"); root != "" {
		return root
	}
	return "."
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}

func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}

// Config is the cleaner's configuration surface. Paths are absolute or
// relative to the working directory once Load has resolved them.
type Config struct {
	ImagePath       string
	TemperaturePath string
	MaskPath        string
	YieldDataPath   string
	SaveDir         string
	ReportPath      string
	IndexPath       string
	ArtifactFormat  string

	NumYears        int
	Multiprocessing bool
	Processes       int
	Parallelism     int
	DeleteWhenDone  bool
}

// LoadEnv loads the first .env file found among paths into the environment.
// Variables already set are not overridden. Missing files are not an error.
func LoadEnv(paths ...string) {
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			return
		}
	}
}

// Load reads the configuration from the environment, applying defaults for
// unset variables.
func Load() (Config, error) {
	root := RootPath()
	path := func(env, def string) string {
		v := os.Getenv(env)
		if v == "" {
			v = def
		}
		if filepath.IsAbs(v) {
			return v
		}
		return filepath.Join(root, v)
	}

	cfg := Config{
		ImagePath:       path("CYP_IMAGE_PATH", "data/crop_yield-data_image"),
		TemperaturePath: path("CYP_TEMPERATURE_PATH", "data/crop_yield-data_temperature"),
		MaskPath:        path("CYP_MASK_PATH", "data/crop_yield-data_mask"),
		YieldDataPath:   path("CYP_YIELD_DATA_PATH", "data/yield_data.csv"),
		SaveDir:         path("CYP_SAVE_DIR", "data/img_output"),
		ReportPath:      path("CYP_REPORT_PATH", "data/clean_report.csv"),
		ArtifactFormat:  os.Getenv("CYP_ARTIFACT_FORMAT"),
	}
	if v := os.Getenv("CYP_INDEX_PATH"); v != "" {
		cfg.IndexPath = path("CYP_INDEX_PATH", "")
	}
	if cfg.ArtifactFormat == "" {
		cfg.ArtifactFormat = "npy"
	}

	var err error
	if cfg.NumYears, err = intEnv("CYP_NUM_YEARS", 14); err != nil {
		return Config{}, err
	}
	if cfg.Processes, err = intEnv("CYP_PROCESSES", 4); err != nil {
		return Config{}, err
	}
	if cfg.Parallelism, err = intEnv("CYP_PARALLELISM", 6); err != nil {
		return Config{}, err
	}
	if cfg.Multiprocessing, err = boolEnv("CYP_MULTIPROCESSING", true); err != nil {
		return Config{}, err
	}
	if cfg.DeleteWhenDone, err = boolEnv("CYP_DELETE_WHEN_DONE", false); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.NumYears < 1 {
		return fmt.Errorf("num years must be at least 1, got %d", c.NumYears)
	}
	if c.Processes < 1 {
		return fmt.Errorf("processes must be at least 1, got %d", c.Processes)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}
	return nil
}

func intEnv(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	return n, nil
}

func boolEnv(name string, def bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	return b, nil
}
