package marketplace

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"
)

// ExcludedProviders is the client's list of providers to leave out of future
// matches, kept as a JSON file.
type ExcludedProviders struct {
	Items []*ExcludedProvider `json:"items"`
}

type ExcludedProvider struct {
	ID           string    `json:"id"`
	BusinessName string    `json:"businessName,omitempty"`
	ExcludedAt   time.Time `json:"excludedAt"`
}

// GetExcludedProvidersFromFile reads an exclude file. A missing or empty file
// is an empty list.
func GetExcludedProvidersFromFile(path string) (*ExcludedProviders, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &ExcludedProviders{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedProviders{}, nil
	}

	var excluded ExcludedProviders
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

// Append adds entries whose ids are not already present.
func (e *ExcludedProviders) Append(items ...*ExcludedProvider) {
	seen := make(map[string]struct{}, len(e.Items))
	for _, item := range e.Items {
		seen[item.ID] = struct{}{}
	}
	for _, item := range items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		e.Items = append(e.Items, item)
	}
}

func (e *ExcludedProviders) IDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func (e *ExcludedProviders) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

// ToExcluded converts the matches into exclude entries stamped with now.
func (m *MatchSet) ToExcluded(now time.Time) []*ExcludedProvider {
	out := make([]*ExcludedProvider, 0, len(m.Matches))
	for _, match := range m.Matches {
		out = append(out, &ExcludedProvider{ID: match.ProviderID, BusinessName: match.BusinessName, ExcludedAt: now})
	}
	return out
}
