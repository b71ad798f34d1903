package models

import "time"

const TemporaryProductName = "Untitled product"

type Product struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	PriceCents  int64
	// Temporary marks a provisional product that anchors in-progress
	// uploads and has not been finalized yet.
	Temporary bool
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type AttachmentCategory string

const (
	CategoryMedia AttachmentCategory = "media"
	CategoryFiles AttachmentCategory = "files"
)

type Attachment struct {
	ID           string
	ProductID    string
	Category     AttachmentCategory
	FileName     string // generated object name, never the raw upload name
	OriginalName string
	SizeBytes    int64
	MimeType     string
	SortOrder    int
	StorageURL   string
	CreatedAt    time.Time
}
