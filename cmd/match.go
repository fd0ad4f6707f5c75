package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/serbisyo-bataan/matcher/internal/filtering"
	"github.com/serbisyo-bataan/matcher/internal/logger"
	"github.com/serbisyo-bataan/matcher/internal/marketplace"
	"github.com/serbisyo-bataan/matcher/internal/matching"
)

const (
	PromptReportByMunicipality = "Report by municipality"
	PromptShowDetails          = "Show match details"
	PromptMatchesToFile        = "Dump matches to file"
	PromptAppendToExcludeFile  = "Append all matches to exclude file"
	PromptExit                 = "Exit"
	PromptBack                 = "back"
)

var errExit = errors.New("exit requested")

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank providers for a job",
	Run: func(cmd *cobra.Command, _ []string) {
		match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("job", "", "path to the job request JSON file (required)")
	matchCmd.Flags().String("providers", "", "path to the provider export JSON file")
	matchCmd.Flags().Int("max-results", 0, "maximum number of matches to return")
	matchCmd.Flags().String("category", "", "override the job category")
	matchCmd.Flags().String("municipality", "", "only keep providers from this municipality")
	matchCmd.Flags().Bool("verified-only", false, "only keep verified providers")
	matchCmd.Flags().Float64("min-rating", 0, "only keep providers rated at least this (0 disables)")
	matchCmd.Flags().StringP("exclude-file", "e", "", "file with providers to exclude. Default is unset.")
	matchCmd.Flags().BoolP("interactive", "i", false, "open a menu to explore the matches")

	matchCmd.MarkFlagRequired("job")

	viper.BindPFlag("providers-file", matchCmd.Flags().Lookup("providers"))
	viper.BindPFlag("exclude-file", matchCmd.Flags().Lookup("exclude-file"))
}

func match(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the matcher", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	e, err := newEngine(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing the matching engine", zap.Error(err))
	}

	job, providers, err := loadInputs(ctx, cmd, e, config)
	if err != nil {
		logger.Fatal("loading inputs", zap.Error(err))
	}

	filters, err := filtersFromFlags(cmd, config)
	if err != nil {
		logger.Fatal("reading filters", zap.Error(err))
	}

	maxResults, _ := cmd.Flags().GetInt("max-results")

	set, err := e.orchestrator.FindMatches(ctx, job, providers, filters, matching.Preferences{MaxResults: maxResults})
	if err != nil {
		logger.Fatal("matching failed", zap.Error(err))
	}

	logger.Info("matching done",
		zap.String("job_id", set.JobID),
		zap.Int("candidates", set.TotalCandidates),
		zap.Int("qualified", set.QualifiedCount),
		zap.String("summary", set.Insights.Summary),
	)

	if interactive, _ := cmd.Flags().GetBool("interactive"); !interactive {
		if err := printJSON(set); err != nil {
			logger.Fatal("printing matches", zap.Error(err))
		}
		return
	}

	prompt := promptui.Select{
		Label: "What next?",
		Items: []string{PromptReportByMunicipality, PromptShowDetails, PromptMatchesToFile, PromptAppendToExcludeFile, PromptExit},
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, logger, config, set); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, logger *zap.Logger, config *Config, set *marketplace.MatchSet) error {
	switch action {
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptReportByMunicipality:
		pretty, _ := json.MarshalIndent(set.ReportByMunicipality(), "", "  ")
		logger.Info(string(pretty), zap.Int("matches count", set.Len()))
		return nil
	case PromptShowDetails:
		return showDetails(set)
	case PromptMatchesToFile:
		filename, err := set.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptAppendToExcludeFile:
		return appendToExcludeFile(logger, config, set)
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func showDetails(set *marketplace.MatchSet) error {
	for {
		items := make([]string, 0, set.Len()+1)
		for _, m := range set.Matches {
			items = append(items, fmt.Sprintf("%s %s / %d / %s", m.ProviderID, m.BusinessName, m.OverallScore, m.Recommendation))
		}

		matchPrompt := promptui.Select{
			Label: "Choose a provider and press ENTER",
			Items: append(items, PromptBack),
		}

		_, selected, err := matchPrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptBack {
			return nil
		}

		providerID := strings.Split(selected, " ")[0]
		m := set.FindByProviderID(providerID)
		if m == nil {
			return fmt.Errorf("there is no such provider id %s", providerID)
		}
		if err := printJSON(m); err != nil {
			return err
		}
	}
}

func appendToExcludeFile(logger *zap.Logger, config *Config, set *marketplace.MatchSet) error {
	path := strings.TrimSpace(config.ExcludeFile)
	if path == "" {
		logger.Warn("exclude file is not set", zap.String("hint", "pass --exclude-file or set exclude-file in the config"))
		return nil
	}

	excluded, err := marketplace.GetExcludedProvidersFromFile(path)
	if err != nil {
		return err
	}
	excluded.Append(set.ToExcluded(time.Now())...)

	if err := excluded.ToFile(path); err != nil {
		return err
	}

	logger.Info("appended to exclude file", zap.String("filename", path), zap.Int("excluded", len(excluded.Items)))
	return nil
}

func loadInputs(ctx context.Context, cmd *cobra.Command, e *engine, config *Config) (*marketplace.Job, *marketplace.Providers, error) {
	jobPath, _ := cmd.Flags().GetString("job")
	job, err := marketplace.GetJobFromFile(jobPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading job: %w", err)
	}

	providers, err := loadProviders(ctx, e, config)
	if err != nil {
		return nil, nil, err
	}

	return job, providers, nil
}

func filtersFromFlags(cmd *cobra.Command, config *Config) (filtering.Overrides, error) {
	var filters filtering.Overrides

	filters.Category, _ = cmd.Flags().GetString("category")
	filters.Municipality, _ = cmd.Flags().GetString("municipality")
	filters.VerifiedOnly, _ = cmd.Flags().GetBool("verified-only")

	if minRating, _ := cmd.Flags().GetFloat64("min-rating"); minRating > 0 {
		filters.MinRating = &minRating
	}

	if path := strings.TrimSpace(config.ExcludeFile); path != "" {
		excluded, err := marketplace.GetExcludedProvidersFromFile(path)
		if err != nil {
			return filters, fmt.Errorf("getting excluded providers from file: %w", err)
		}
		filters.ExcludeIDs = excluded.IDs()
	}

	return filters, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// redacted returns a copy of the config that is safe to log.
func redacted(config *Config) *Config {
	c := *config
	if config.AI != nil {
		aiCopy := *config.AI
		for _, vendor := range []**VendorConfig{&aiCopy.Gemini, &aiCopy.OpenAI} {
			if *vendor != nil && (*vendor).APIKey != "" {
				v := **vendor
				v.APIKey = "***"
				*vendor = &v
			}
		}
		c.AI = &aiCopy
	}
	return &c
}
