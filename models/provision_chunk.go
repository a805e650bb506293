package models

import (
	"github.com/google/uuid"
)

// ProvisionChunk represents a chunk of statutory text from the pre-populated
// provisions corpus (MRG, ABGB, KSchG, GDPR extracts and similar)
type ProvisionChunk struct {
	ID                uuid.UUID              `json:"id"`
	Text              string                 `json:"text"`
	SourceAct         string                 `json:"source_act"`
	ProvisionCitation *string                `json:"provision_citation,omitempty"`
	ChunkIndex        int                    `json:"chunk_index"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	Distance          float64                `json:"distance,omitempty"` // Vector similarity distance
}
