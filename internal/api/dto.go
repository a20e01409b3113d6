package api

import (
	"github.com/starford/memman/internal/memservice"
	"github.com/starford/memman/internal/models"
)

// RecordCorrectionRequest is the request body for recording a correction.
type RecordCorrectionRequest struct {
	Incorrect string          `json:"incorrect" example:"npm"`
	Correct   string          `json:"correct" example:"Use pnpm for installs" validate:"required"`
	Category  models.Category `json:"category,omitempty" example:"dependency"`
	Paths     []string        `json:"paths,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
}

// UseEntryRequest is the optional body for recording an entry use.
type UseEntryRequest struct {
	Context string `json:"context" example:"session 42"`
}

// EntryListResponse wraps entry listings.
type EntryListResponse struct {
	Entries []models.MemoryEntry `json:"entries" validate:"required"`
	Total   int                  `json:"total" example:"42" validate:"required"`
}

// CorrectionListResponse wraps correction listings.
type CorrectionListResponse struct {
	Corrections []models.Correction `json:"corrections" validate:"required"`
	Total       int                 `json:"total" validate:"required"`
}

// RescoreResponse wraps staleness results.
type RescoreResponse struct {
	Applied bool                `json:"applied"`
	Scores  []memservice.Scored `json:"scores" validate:"required"`
}
