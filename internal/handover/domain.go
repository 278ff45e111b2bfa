package handover

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when no handover has been saved yet.
var ErrNotFound = errors.New("handover: not found")

// Default and maximum page sizes for history listings.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Handover is a note left by one shift for the next.
type Handover struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ShiftFrom string    `json:"shiftFrom"`
	ShiftTo   string    `json:"shiftTo"`
	Text      string    `json:"handoverText"`
	Points    []string  `json:"points"`
	SavedAt   time.Time `json:"savedAt"`
	CreatedBy int64     `json:"createdBy,omitempty"`
}

// CreateRequest is the body of POST /api/handovers.
type CreateRequest struct {
	Name      string   `json:"name" validate:"required,max=255"`
	ShiftFrom string   `json:"shiftFrom" validate:"required,max=50"`
	ShiftTo   string   `json:"shiftTo" validate:"required,max=50"`
	Text      string   `json:"handoverText" validate:"max=10000"`
	Points    []string `json:"points" validate:"max=50,dive,max=1000"`
}

// CleanPoints trims every point and drops the blank ones.
func CleanPoints(points []string) []string {
	out := make([]string, 0, len(points))
	for _, p := range points {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ClampLimit bounds a requested history size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
