package validation

import (
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/SyedJoN/mytube-backend/internal/models"
)

var videoIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// Validator checks telemetry batches and individual samples. Batch-level
// failures reject the request; event-level failures only skip the event.
type Validator struct {
	maxBatchSize int
}

func New(maxBatchSize int) *Validator {
	return &Validator{maxBatchSize: maxBatchSize}
}

// ValidateBatch checks batch-level constraints before any processing.
func (v *Validator) ValidateBatch(batch []models.TelemetryEventDTO) error {
	if len(batch) == 0 {
		return fmt.Errorf("telemetry batch must be a non-empty array")
	}
	if v.maxBatchSize > 0 && len(batch) > v.maxBatchSize {
		return fmt.Errorf("telemetry batch exceeds maximum size of %d events", v.maxBatchSize)
	}
	return nil
}

// ValidateEvent checks one sample. A non-nil error means the event is
// malformed and must be skipped, not that the batch fails.
func (v *Validator) ValidateEvent(dto *models.TelemetryEventDTO) error {
	if dto.VideoID == "" {
		return fmt.Errorf("missing video ID")
	}
	if !videoIDRegex.MatchString(dto.VideoID) {
		return fmt.Errorf("invalid video ID format: %s", dto.VideoID)
	}
	if dto.CurrentTime == nil {
		return fmt.Errorf("missing currentTime")
	}
	if math.IsNaN(*dto.CurrentTime) || math.IsInf(*dto.CurrentTime, 0) || *dto.CurrentTime < 0 {
		return fmt.Errorf("currentTime must be a non-negative number, got %v", *dto.CurrentTime)
	}
	if math.IsNaN(dto.Duration) || math.IsInf(dto.Duration, 0) || dto.Duration < 0 {
		return fmt.Errorf("duration must be a non-negative number, got %v", dto.Duration)
	}

	// Client clocks drift; reject only wildly implausible timestamps.
	if dto.Timestamp != 0 {
		now := time.Now().Unix()
		eventTime := dto.Timestamp / 1000 // milliseconds from the player
		if eventTime > now+300 {
			return fmt.Errorf("timestamp is in the future")
		}
		if eventTime < now-30*24*60*60 {
			return fmt.Errorf("timestamp is too old (>30 days)")
		}
	}

	return nil
}

// IsValidVideoID reports whether the given ID matches the expected format.
func (v *Validator) IsValidVideoID(videoID string) bool {
	return videoIDRegex.MatchString(videoID)
}
