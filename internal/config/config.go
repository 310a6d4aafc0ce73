package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultListingURL is the Supreme Court judgment notice board.
const DefaultListingURL = "https://www.scourt.go.kr/supreme/info/JpBoardListAction.work?gubun=1"

// Config holds the full application configuration.
type Config struct {
	Court   CourtConfig   `yaml:"court" mapstructure:"court"`
	Run     RunConfig     `yaml:"run" mapstructure:"run"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	HTTP    HTTPConfig    `yaml:"http" mapstructure:"http"`
	OCR     OCRConfig     `yaml:"ocr" mapstructure:"ocr"`
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// CourtConfig describes the notice board being scraped.
type CourtConfig struct {
	ListingURL     string `yaml:"listing_url" mapstructure:"listing_url"`
	PageParam      string `yaml:"page_param" mapstructure:"page_param"`
	DateColumn     int    `yaml:"date_column" mapstructure:"date_column"`
	IncidentColumn int    `yaml:"incident_column" mapstructure:"incident_column"`
}

// RunConfig bounds a scrape run. StartPage and EndPage are inclusive.
type RunConfig struct {
	StartPage int  `yaml:"start_page" mapstructure:"start_page"`
	EndPage   int  `yaml:"end_page" mapstructure:"end_page"`
	Strict    bool `yaml:"strict" mapstructure:"strict"`
	Workers   int  `yaml:"workers" mapstructure:"workers"`
}

// CacheConfig configures the local PDF cache directory.
type CacheConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	Validate   bool   `yaml:"validate" mapstructure:"validate"`
	Revalidate bool   `yaml:"revalidate" mapstructure:"revalidate"`
	Progress   bool   `yaml:"progress" mapstructure:"progress"`
}

// OutputConfig configures the XLSX report.
type OutputConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// HTTPConfig configures the shared HTTP fetcher.
type HTTPConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// OCRConfig configures PDF text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralKey    string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string `yaml:"mistral_ocr_model" mapstructure:"mistral_ocr_model"`
}

// ExtractConfig selects the field extraction ruleset.
type ExtractConfig struct {
	RulesFile string `yaml:"rules_file" mapstructure:"rules_file"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCOURT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("court.listing_url", DefaultListingURL)
	v.SetDefault("court.page_param", "pageIndex")
	v.SetDefault("court.date_column", 1)
	v.SetDefault("court.incident_column", 3)
	v.SetDefault("run.start_page", 1)
	v.SetDefault("run.end_page", 5)
	v.SetDefault("run.strict", false)
	v.SetDefault("run.workers", 1)
	v.SetDefault("cache.dir", "pdf_files")
	v.SetDefault("cache.validate", true)
	v.SetDefault("cache.revalidate", false)
	v.SetDefault("cache.progress", true)
	v.SetDefault("output.path", "parsed_data.xlsx")
	v.SetDefault("http.user_agent", "scourt-cli/1.0")
	v.SetDefault("http.timeout_secs", 60)
	v.SetDefault("http.max_retries", 1)
	v.SetDefault("http.rate_per_sec", 5.0)
	v.SetDefault("ocr.provider", "native")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.mistral_ocr_model", "mistral-ocr-latest")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the run can start with this configuration.
func (c *Config) Validate() error {
	var problems []string

	if c.Court.ListingURL == "" {
		problems = append(problems, "court.listing_url is required")
	}
	if c.Court.PageParam == "" {
		problems = append(problems, "court.page_param is required")
	}
	if c.Court.DateColumn < 0 || c.Court.IncidentColumn < 0 {
		problems = append(problems, "court column indexes must be >= 0")
	}
	if c.Run.StartPage < 1 {
		problems = append(problems, "run.start_page must be >= 1")
	}
	if c.Run.EndPage < c.Run.StartPage {
		problems = append(problems, "run.end_page must be >= run.start_page")
	}
	if c.Run.Workers < 1 {
		problems = append(problems, "run.workers must be >= 1")
	}
	if c.Cache.Dir == "" {
		problems = append(problems, "cache.dir is required")
	}
	if c.Output.Path == "" {
		problems = append(problems, "output.path is required")
	}
	switch c.OCR.Provider {
	case "", "native", "local":
	case "mistral":
		if c.OCR.MistralKey == "" {
			problems = append(problems, "ocr.mistral_api_key is required for the mistral provider")
		}
	default:
		problems = append(problems, "ocr.provider must be one of native, local, mistral")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
