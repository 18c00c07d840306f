package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is ingested knowledge-base content. Text extraction happens
// upstream; this service only ever sees plain text.
type Document struct {
	ID              string         `json:"id"`
	KnowledgeBaseID string         `json:"kb_id"`
	Title           string         `json:"title"`
	StoragePath     string         `json:"storage_path"`
	ChunkCount      int            `json:"chunk_count"`
	EntityCount     int            `json:"entity_count"`
	Status          DocumentStatus `json:"status"`
	Error           string         `json:"error_message,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Entity is one graph node extracted from a document.
type Entity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// EntityGraph is the extraction output for one document.
type EntityGraph struct {
	Entities  []Entity         `json:"entities"`
	Relations []RelationTriple `json:"relations"`
}

// ConversationTurn is one answered question recorded for later listing.
type ConversationTurn struct {
	ID              string              `json:"id"`
	ConversationID  string              `json:"conversation_id"`
	KnowledgeBaseID string              `json:"kb_id"`
	Question        string              `json:"question"`
	Answer          string              `json:"answer"`
	Sources         []SourceAttribution `json:"sources"`
	CreatedAt       time.Time           `json:"created_at"`
}
