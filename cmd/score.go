package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/serbisyo-bataan/matcher/internal/logger"
	"github.com/serbisyo-bataan/matcher/internal/marketplace"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a single provider against a job",
	Run: func(cmd *cobra.Command, _ []string) {
		score(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().String("job", "", "path to the job request JSON file (required)")
	scoreCmd.Flags().String("providers", "", "path to the provider export JSON file")
	scoreCmd.Flags().String("provider-id", "", "id of the provider to score (required)")

	scoreCmd.MarkFlagRequired("job")
	scoreCmd.MarkFlagRequired("provider-id")
}

func score(cmd *cobra.Command) {
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
	// The providers flag is bound for match only, so read it here.
	if path, _ := cmd.Flags().GetString("providers"); path != "" {
		config.ProvidersFile = path
	}

	e, err := newEngine(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing the matching engine", zap.Error(err))
	}

	jobPath, _ := cmd.Flags().GetString("job")
	job, err := marketplace.GetJobFromFile(jobPath)
	if err != nil {
		logger.Fatal("reading job", zap.Error(err))
	}

	// With a directory the provider is looked up remotely.
	if e.directory == nil {
		providers, err := loadProviders(ctx, e, config)
		if err != nil {
			logger.Fatal("loading providers", zap.Error(err))
		}
		e.source.Replace(providers)
	}

	providerID, _ := cmd.Flags().GetString("provider-id")
	result, err := e.orchestrator.ScoreSingleProvider(ctx, providerID, job)
	if err != nil {
		logger.Fatal("scoring failed", zap.String("provider_id", providerID), zap.Error(err))
	}

	if err := printJSON(result); err != nil {
		logger.Fatal("printing result", zap.Error(err))
	}
}
