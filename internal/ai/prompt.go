package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	_ "embed"

	"github.com/serbisyo-bataan/matcher/internal/catalog"
	"github.com/serbisyo-bataan/matcher/internal/marketplace"
)

//go:embed prompt.md
var promptTemplate string

type promptContext struct {
	DistanceKm      *float64          `json:"distanceKm,omitempty"`
	JobKeywords     []string          `json:"jobKeywords,omitempty"`
	Category        *catalog.Category `json:"categoryReference,omitempty"`
	BaselineScore   int               `json:"baselineScore"`
	BaselineReasons []string          `json:"baselineReasons,omitempty"`
}

func buildPrompt(provider *marketplace.Provider, job *marketplace.Job, pc promptContext) (string, error) {
	providerJSON, err := json.MarshalIndent(provider, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal provider payload: %w", err)
	}

	jobJSON, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	contextJSON, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal context payload: %w", err)
	}

	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Provider:\n{{PROVIDER_JSON}}\n\nJob:\n{{JOB_JSON}}\n\nContext:\n{{CONTEXT_JSON}}\n\nJSON Response:"
	}

	prompt := strings.ReplaceAll(template, "{{PROVIDER_JSON}}", string(providerJSON))
	prompt = strings.ReplaceAll(prompt, "{{JOB_JSON}}", string(jobJSON))
	prompt = strings.ReplaceAll(prompt, "{{CONTEXT_JSON}}", string(contextJSON))
	return prompt, nil
}
