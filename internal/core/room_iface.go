package core

import "github.com/dkeye/groupcall/internal/domain"

// RoomInfo is a read-only view for APIs (no transport fields).
type RoomInfo struct {
	Name             domain.RoomName          `json:"name"`
	ParticipantCount int                      `json:"participant_count"`
	Participants     []domain.ParticipantName `json:"participants"`
	PipelineID       string                   `json:"pipeline_id,omitempty"`
}
