package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/serbisyo-bataan/matcher/internal/marketplace"
	"github.com/serbisyo-bataan/matcher/internal/matching"
)

const (
	userAgent = "serbisyo-bataan/matcher"
	// Max value for listing per page.
	perPage = "100"

	providersPath = "/providers"
)

// Client reads provider profiles from the marketplace directory API.
type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	BaseURL    string
}

func New(logger *zap.Logger, baseURL, token string) *Client {
	return &Client{
		token:   token,
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

// Providers fetches every listed provider, following pagination.
func (c *Client) Providers(ctx context.Context, municipality string) (*marketplace.Providers, error) {
	q := url.Values{}
	q.Set("per_page", perPage)
	if municipality != "" {
		q.Set("municipality", municipality)
	}

	items, err := c.GetItems(ctx, c.BaseURL+providersPath, q)
	if err != nil {
		return nil, err
	}

	providers, err := marketplace.DecodeProviders(items)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched providers from directory", zap.Int("count", providers.Len()))
	return providers, nil
}

// Provider fetches one provider profile, so the client can back
// single-provider scoring directly.
func (c *Client) Provider(ctx context.Context, id string) (*marketplace.Provider, error) {
	var raw map[string]any
	endpoint := fmt.Sprintf("%s%s/%s", c.BaseURL, providersPath, url.PathEscape(id))
	if err := c.getJSON(ctx, endpoint, nil, &raw); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", matching.ErrProviderNotFound, id)
		}
		return nil, err
	}

	providers, err := marketplace.DecodeProviders([]any{raw})
	if err != nil {
		return nil, err
	}
	return providers.Items[0], nil
}
