package models

import "time"

// Export request status constants
const (
	ExportStatusPending    = "pending"
	ExportStatusProcessing = "processing"
	ExportStatusComplete   = "complete"
	ExportStatusFailed     = "failed"
)

// ExportRequest represents a request to bundle entries in a date range
// into a downloadable archive. ResultURL is set if and only if the request
// completed.
type ExportRequest struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	DateFrom  time.Time `gorm:"not null" json:"date_from"`
	DateTo    time.Time `gorm:"not null" json:"date_to"`
	Status    string    `gorm:"not null;default:'pending'" json:"status"`
	ResultURL *string   `json:"result_url"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
