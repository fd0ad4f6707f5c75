package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/serbisyo-bataan/matcher/internal/filtering"
	"github.com/serbisyo-bataan/matcher/internal/marketplace"
	"github.com/serbisyo-bataan/matcher/internal/matching"
)

// Matcher is the part of the orchestrator the HTTP layer needs.
type Matcher interface {
	FindMatches(ctx context.Context, job *marketplace.Job, providers *marketplace.Providers, filters filtering.Overrides, prefs matching.Preferences) (*marketplace.MatchSet, error)
	ScoreSingleProvider(ctx context.Context, providerID string, job *marketplace.Job) (*marketplace.MatchResult, error)
}

// ProviderList returns the providers used when a request carries none.
type ProviderList interface {
	All() *marketplace.Providers
}

type Handler struct {
	matcher   Matcher
	providers ProviderList
	logger    *zap.Logger
}

func NewHandler(matcher Matcher, providers ProviderList, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{matcher: matcher, providers: providers, logger: logger}
}

// NewRouter wires the handlers, recovery and request logging into a gin engine.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(Recovery(h.logger))
	router.Use(Logger(h.logger))

	router.GET("/healthz", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.POST("/matches", h.FindMatches)
	api.POST("/providers/:id/score", h.ScoreProvider)

	return router
}

type requestFilters struct {
	Municipality string   `json:"municipality"`
	Category     string   `json:"category"`
	Verified     bool     `json:"verified"`
	VerifiedOnly bool     `json:"verifiedOnly"`
	MinRating    *float64 `json:"minRating"`
	ExcludeIDs   []string `json:"excludeIds"`
}

func (f requestFilters) overrides() filtering.Overrides {
	return filtering.Overrides{
		Municipality: f.Municipality,
		Category:     f.Category,
		VerifiedOnly: f.Verified || f.VerifiedOnly,
		MinRating:    f.MinRating,
		ExcludeIDs:   f.ExcludeIDs,
	}
}

type matchRequest struct {
	Job         *marketplace.Job        `json:"job"`
	Providers   []*marketplace.Provider `json:"providers"`
	Filters     requestFilters          `json:"filters"`
	Preferences matching.Preferences    `json:"preferences"`
}

type scoreRequest struct {
	Job *marketplace.Job `json:"job"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// FindMatches handles POST /api/v1/matches.
func (h *Handler) FindMatches(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Job == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job is required"})
		return
	}

	var providers *marketplace.Providers
	if req.Providers != nil {
		for idx, provider := range req.Providers {
			if provider == nil || strings.TrimSpace(provider.ID) == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "every provider needs an id", "index": idx})
				return
			}
		}
		providers = &marketplace.Providers{Items: req.Providers}
	} else if h.providers != nil {
		providers = h.providers.All()
	}

	set, err := h.matcher.FindMatches(c.Request.Context(), req.Job, providers, req.Filters.overrides(), req.Preferences)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, set)
}

// ScoreProvider handles POST /api/v1/providers/:id/score.
func (h *Handler) ScoreProvider(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Job == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: job is required"})
		return
	}

	result, err := h.matcher.ScoreSingleProvider(c.Request.Context(), c.Param("id"), req.Job)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, matching.ErrInvalidJob), errors.Is(err, matching.ErrInvalidFilters):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, matching.ErrProviderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "provider not found"})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
