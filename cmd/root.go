package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/serbisyo-bataan/matcher/internal/ai"
	"github.com/serbisyo-bataan/matcher/internal/ai/gemini"
	aiopenai "github.com/serbisyo-bataan/matcher/internal/ai/openai"
	"github.com/serbisyo-bataan/matcher/internal/catalog"
	"github.com/serbisyo-bataan/matcher/internal/directory"
	"github.com/serbisyo-bataan/matcher/internal/marketplace"
	"github.com/serbisyo-bataan/matcher/internal/matching"
	"github.com/serbisyo-bataan/matcher/internal/scoring"
	"github.com/serbisyo-bataan/matcher/internal/secrets"
)

const (
	app = "serbisyo-matcher"

	providerGemini = "gemini"
	providerOpenAI = "openai"
)

type Config struct {
	ProvidersFile string           `mapstructure:"providers-file"`
	CatalogFile   string           `mapstructure:"catalog-file"`
	ExcludeFile   string           `mapstructure:"exclude-file"`
	Matching      *MatchingConfig  `mapstructure:"matching"`
	AI            *AIConfig        `mapstructure:"ai"`
	Server        *ServerConfig    `mapstructure:"server"`
	Directory     *DirectoryConfig `mapstructure:"directory"`
}

// DirectoryConfig points at the marketplace directory API. When URL is set,
// providers come from the API instead of providers-file.
type DirectoryConfig struct {
	URL             string        `mapstructure:"url"`
	Token           string        `mapstructure:"token"`
	TokenFile       string        `mapstructure:"token-file"`
	Municipality    string        `mapstructure:"municipality"`
	RefreshInterval time.Duration `mapstructure:"refresh-interval"`
}

type MatchingConfig struct {
	MaxResults      int     `mapstructure:"max-results"`
	DefaultRadiusKm float64 `mapstructure:"default-radius-km"`
}

type AIConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Provider     string        `mapstructure:"provider"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max-retries"`
	RetryBackoff time.Duration `mapstructure:"retry-backoff"`
	MaxLogLength int           `mapstructure:"max-log-length"`
	Gemini       *VendorConfig `mapstructure:"gemini"`
	OpenAI       *VendorConfig `mapstructure:"openai"`
}

type VendorConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base-url"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "serbisyo-matcher ranks local service providers for a job request",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range map[string]string{
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"ai.openai.api-key-file": "OPENAI_API_KEY_FILE",
		"ai.openai.base-url":     "OPENAI_BASE_URL",
		"providers-file":         "MATCHER_PROVIDERS_FILE",
		"directory.url":          "MATCHER_DIRECTORY_URL",
		"directory.token-file":   "MATCHER_DIRECTORY_TOKEN_FILE",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("matching.max-results", matching.DefaultMaxResults)
	viper.SetDefault("matching.default-radius-km", scoring.DefaultSearchRadiusKm)
	viper.SetDefault("ai.provider", providerGemini)
	viper.SetDefault("ai.timeout", matching.DefaultAITimeout)
	viper.SetDefault("ai.retry-backoff", time.Second)
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("directory.refresh-interval", 5*time.Minute)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is serbisyo-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Every setting has a default or a flag, so a missing config file is fine.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}
	if config == nil {
		config = &Config{}
	}
	if config.Matching == nil {
		config.Matching = &MatchingConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.Server == nil {
		config.Server = &ServerConfig{}
	}
	if config.Directory == nil {
		config.Directory = &DirectoryConfig{}
	}

	return config, nil
}

// engine bundles everything a command needs to match jobs.
type engine struct {
	catalog      *catalog.Catalog
	handle       *ai.Handle
	scorer       *ai.Scorer
	orchestrator *matching.Orchestrator
	source       *matching.StaticSource
	// directory is nil unless directory.url is set.
	directory *directory.Client
}

func newEngine(ctx context.Context, config *Config, logger *zap.Logger) (*engine, error) {
	c := catalog.Default()
	if path := strings.TrimSpace(config.CatalogFile); path != "" {
		loaded, err := catalog.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading category catalog: %w", err)
		}
		c = loaded
	}

	generator, err := newGenerator(ctx, config.AI, logger)
	if err != nil {
		logger.Warn("ai scoring disabled, using deterministic scores", zap.Error(err))
		generator = nil
	}

	handle := ai.NewHandle(generator)
	deterministic := scoring.NewDeterministic(c, config.Matching.DefaultRadiusKm)
	scorer := ai.NewScorer(handle, deterministic, config.AI.Provider, logger, config.AI.MaxLogLength)
	source := matching.NewStaticSource(nil)

	dir, err := newDirectory(config.Directory, logger)
	if err != nil {
		return nil, err
	}
	// Single-provider lookups go straight to the directory when there is one.
	var lookup matching.ProviderSource = source
	if dir != nil {
		lookup = dir
	}

	orchestrator := matching.New(scorer, lookup, matching.Options{
		MaxResults:      config.Matching.MaxResults,
		AITimeout:       config.AI.Timeout,
		DefaultRadiusKm: config.Matching.DefaultRadiusKm,
		Catalog:         c,
		Logger:          logger,
	})

	return &engine{
		catalog:      c,
		handle:       handle,
		scorer:       scorer,
		orchestrator: orchestrator,
		source:       source,
		directory:    dir,
	}, nil
}

func newDirectory(cfg *DirectoryConfig, logger *zap.Logger) (*directory.Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.URL) == "" {
		return nil, nil
	}

	token, err := secrets.Load(secrets.Source{
		Name:  "directory token",
		Value: cfg.Token,
		File:  cfg.TokenFile,
		Env:   "MATCHER_DIRECTORY_TOKEN",
	})
	// The directory may be public.
	if err != nil && !errors.Is(err, secrets.ErrMissing) {
		return nil, err
	}

	logger.Info("using provider directory", zap.String("url", cfg.URL))
	return directory.New(logger.Named("directory"), cfg.URL, token), nil
}

// loadProviders reads providers from the directory when one is configured,
// otherwise from the providers file.
func loadProviders(ctx context.Context, e *engine, config *Config) (*marketplace.Providers, error) {
	if e.directory != nil {
		providers, err := e.directory.Providers(ctx, config.Directory.Municipality)
		if err != nil {
			return nil, fmt.Errorf("fetching providers from directory: %w", err)
		}
		return providers, nil
	}

	path := strings.TrimSpace(config.ProvidersFile)
	if path == "" {
		return nil, errors.New("providers file is not set (pass --providers, set providers-file or directory.url)")
	}
	providers, err := marketplace.GetProvidersFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading providers: %w", err)
	}
	return providers, nil
}

// newGenerator returns nil without an error when AI scoring is switched off.
func newGenerator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Generator, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	var generator ai.Generator
	switch provider := strings.TrimSpace(strings.ToLower(cfg.Provider)); provider {
	case "", providerGemini:
		vendor := vendorConfig(cfg.Gemini)
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: vendor.APIKey,
			File:  vendor.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
		}
		g, err := gemini.NewGenerator(ctx, apiKey, vendor.Model)
		if err != nil {
			return nil, err
		}
		generator = g
	case providerOpenAI:
		vendor := vendorConfig(cfg.OpenAI)
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: vendor.APIKey,
			File:  vendor.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY_FILE)", err)
		}
		g, err := aiopenai.NewGenerator(apiKey, vendor.Model, vendor.BaseURL)
		if err != nil {
			return nil, err
		}
		generator = g
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	logger.Info("ai scoring enabled",
		zap.String("ai_provider", cfg.Provider),
		zap.String("ai_model", generator.Model()),
		zap.Int("ai_retry_attempts", cfg.MaxRetries),
	)

	return ai.WithRetries(generator, cfg.MaxRetries+1, cfg.RetryBackoff, logger), nil
}

func vendorConfig(v *VendorConfig) *VendorConfig {
	if v == nil {
		return &VendorConfig{}
	}
	return v
}
