// Package models contains the data models and DTOs for the playback
// telemetry backend.
package models

import (
	"time"

	"github.com/google/uuid"
)

// PlaybackState is the player state reported with a telemetry sample.
type PlaybackState string

// PlaybackState constants define the reportable player states.
const (
	PlaybackStatePlaying   PlaybackState = "playing"
	PlaybackStatePaused    PlaybackState = "paused"
	PlaybackStateBuffering PlaybackState = "buffering"
	PlaybackStateEnded     PlaybackState = "ended"
	PlaybackStateUnknown   PlaybackState = "unknown"
)

// NormalizeState maps an arbitrary client string onto a known PlaybackState.
func NormalizeState(s string) PlaybackState {
	switch PlaybackState(s) {
	case PlaybackStatePlaying, PlaybackStatePaused, PlaybackStateBuffering, PlaybackStateEnded:
		return PlaybackState(s)
	default:
		return PlaybackStateUnknown
	}
}

// TelemetryEvent is one client-reported playback sample. Rows are
// append-only and expired by the retention sweeper.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type TelemetryEvent struct {
	ID          uuid.UUID     `json:"id"`
	VideoID     string        `json:"video_id"`
	UserID      string        `json:"user_id,omitempty"`
	AnonID      string        `json:"anon_id,omitempty"`
	SessionID   string        `json:"session_id,omitempty"`
	CurrentTime float64       `json:"current_time"`
	Duration    float64       `json:"duration"`
	State       PlaybackState `json:"state"`
	Muted       bool          `json:"muted"`
	Fullscreen  bool          `json:"fullscreen"`
	Autoplay    bool          `json:"autoplay"`
	Seeked      bool          `json:"seeked"`
	Final       bool          `json:"final"`
	Source      string        `json:"source,omitempty"`
	Country     string        `json:"country,omitempty"`
	Lact        int64         `json:"lact,omitempty"`
	OccurredAt  time.Time     `json:"occurred_at"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Anonymous reports whether the event has no resolved authenticated user.
func (e *TelemetryEvent) Anonymous() bool {
	return e.UserID == ""
}

// SessionKey identifies the playback session the event belongs to, for
// scoping ephemeral seek state. Authenticated sessions key on the user,
// anonymous ones on the client-generated identifiers.
func (e *TelemetryEvent) SessionKey() string {
	if e.UserID != "" {
		return e.UserID + "|" + e.VideoID
	}
	if e.AnonID != "" {
		return "anon:" + e.AnonID + "|" + e.VideoID
	}
	return "sess:" + e.SessionID + "|" + e.VideoID
}

// WatchHistoryRecord is the persisted resume position for one
// (user, video) pair.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type WatchHistoryRecord struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	VideoID     string    `json:"video_id"`
	CurrentTime float64   `json:"current_time"`
	Duration    float64   `json:"duration"`
	HasEnded    bool      `json:"has_ended"`
	LastUpdated time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
}

// TelemetryEventDTO is one element of the ingest request batch.
// Seeked and Final arrive as 0/1 from the player.
type TelemetryEventDTO struct {
	VideoID     string   `json:"videoId"`
	UserID      string   `json:"userId,omitempty"`
	AnonID      string   `json:"anonId,omitempty"`
	SessionID   string   `json:"sessionId,omitempty"`
	CurrentTime *float64 `json:"currentTime"`
	Duration    float64  `json:"duration"`
	State       string   `json:"state"`
	Muted       bool     `json:"muted"`
	Fullscreen  bool     `json:"fullscreen"`
	Autoplay    bool     `json:"autoplay"`
	Seeked      int      `json:"seeked,omitempty"`
	Final       int      `json:"final,omitempty"`
	Source      string   `json:"source,omitempty"`
	Lact        int64    `json:"lact,omitempty"`
	Timestamp   int64    `json:"timestamp,omitempty"`
}

// TelemetryResponseDTO is the ingest response. GuestTimestamps carries the
// last known positions for anonymous sessions in this batch only; they are
// never persisted.
type TelemetryResponseDTO struct {
	InsertedCount   int                `json:"insertedCount"`
	GuestTimestamps map[string]float64 `json:"guestTimestamps,omitempty"`
}

// WatchHistoryItemDTO is one entry of the watch history listing.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type WatchHistoryItemDTO struct {
	VideoID     string    `json:"videoId"`
	CurrentTime float64   `json:"currentTime"`
	Duration    float64   `json:"duration"`
	HasEnded    bool      `json:"hasEnded"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// WatchHistoryPageDTO is the paginated watch history response.
type WatchHistoryPageDTO struct {
	Page       int                   `json:"page"`
	TotalPages int                   `json:"totalPages"`
	Total      int                   `json:"total"`
	Items      []WatchHistoryItemDTO `json:"items"`
}

// ErrorResponse represents an error response.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}
