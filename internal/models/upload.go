package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	UploadStatusUploaded  = "uploaded"
	UploadStatusProcessed = "processed"
)

// UploadedFile is a document the account uploaded for extraction.
type UploadedFile struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	UploadedAt time.Time `gorm:"autoCreateTime" json:"uploaded_at"`

	UserID string `gorm:"type:uuid;index;not null" json:"user_id"`

	FileName      string         `gorm:"not null" json:"file_name"`
	FilePath      string         `gorm:"not null" json:"file_path"`
	FileType      string         `gorm:"not null" json:"file_type"`
	Status        *string        `json:"status,omitempty"`
	ExtractedData datatypes.JSON `json:"extracted_data,omitempty"`
}

func (f *UploadedFile) BeforeCreate(*gorm.DB) error {
	assignID(&f.ID)
	return nil
}

// GetAccountID implements the Owned interface.
func (f *UploadedFile) GetAccountID() string {
	return f.UserID
}

// AIExtraction stores the structured fields extracted from an uploaded file.
type AIExtraction struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	FileID          string         `gorm:"type:uuid;index;not null" json:"file_id"`
	ExtractedText   *string        `gorm:"type:text" json:"extracted_text,omitempty"`
	ExtractedFields datatypes.JSON `json:"extracted_fields,omitempty"`
}

func (e *AIExtraction) BeforeCreate(*gorm.DB) error {
	assignID(&e.ID)
	return nil
}
