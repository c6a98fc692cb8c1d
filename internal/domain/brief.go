package domain

import (
	"fmt"
	"strings"
)

// SiteBrief is the user's input for one generation run. It is immutable
// once the run starts.
type SiteBrief struct {
	Topic          string `json:"topic" binding:"required"`
	Description    string `json:"description,omitempty"`
	PageCount      int    `json:"page_count"`
	Model          string `json:"model,omitempty"`
	SystemPreamble string `json:"system_preamble,omitempty"`
}

// MaxPageCount bounds how many pages a single run may request.
const MaxPageCount = 12

// Validate checks the brief before a run is admitted.
func (b *SiteBrief) Validate() error {
	if strings.TrimSpace(b.Topic) == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(b.Model) == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidRequest)
	}
	if b.PageCount < 1 {
		return fmt.Errorf("%w: page_count must be at least 1", ErrInvalidRequest)
	}
	if b.PageCount > MaxPageCount {
		return fmt.Errorf("%w: page_count must be at most %d", ErrInvalidRequest, MaxPageCount)
	}
	return nil
}
