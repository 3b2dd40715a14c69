package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/imago/internal/common"
	"github.com/ternarybob/imago/internal/interfaces"
	"github.com/ternarybob/imago/internal/models"
)

// ScrapeHandler serves /images/scrape.
type ScrapeHandler struct {
	config  *common.Config
	scraper interfaces.ScrapeService
	logger  arbor.ILogger
}

// NewScrapeHandler creates the scrape endpoint handler.
func NewScrapeHandler(config *common.Config, scraper interfaces.ScrapeService, logger arbor.ILogger) *ScrapeHandler {
	return &ScrapeHandler{
		config:  config,
		scraper: scraper,
		logger:  logger,
	}
}

type scrapeRequest struct {
	URL string `json:"url"`
}

// ServeHTTP accepts POST with a JSON body, or GET with ?url= when
// ENABLE_GET_REQUEST is set.
func (h *ScrapeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var rawURL string
	switch r.Method {
	case http.MethodPost:
		var req scrapeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.logger.Debug().Err(err).Msg("Malformed scrape request body")
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		rawURL = req.URL
	case http.MethodGet:
		if !h.config.EnableGetRequest {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		rawURL = r.URL.Query().Get("url")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := h.scraper.Scrape(r.Context(), rawURL)
	if err != nil {
		// Telemetry already saw this inside the scrape service.
		h.logger.Debug().Err(err).Str("url", rawURL).Msg("Scrape failed")
		h.writeResult(w, models.ResultFromError(err))
		return
	}
	if result.IsNone() {
		// No provider claimed the URL (or it would not parse); the public
		// contract reports this as an error body.
		h.writeResult(w, models.Errors("URL invalid"))
		return
	}
	h.writeResult(w, result)
}

func (h *ScrapeHandler) writeResult(w http.ResponseWriter, result *models.ScrapeResult) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to encode scrape result")
	}
}
