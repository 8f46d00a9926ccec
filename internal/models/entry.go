package models

import "time"

// Entry status constants
const (
	EntryStatusUploaded    = "uploaded"
	EntryStatusProcessing  = "processing"
	EntryStatusTranscribed = "transcribed"
	EntryStatusFailed      = "failed"
)

// MaxFailureReasonLen bounds the stored failure reason.
const MaxFailureReasonLen = 1000

// Entry represents a single audio diary recording and its transcription state
type Entry struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	CreatedAt        time.Time `gorm:"not null;index" json:"created_at"`
	DurationS        int       `gorm:"not null;default:0" json:"duration_s"`
	Status           string    `gorm:"not null;default:'uploaded';index" json:"status"`
	AudioURL         *string   `json:"audio_url"`
	SizeBytes        *int64    `json:"size_bytes"`
	Language         *string   `json:"language"`
	TranscriptRaw    *string   `gorm:"type:text" json:"transcript_raw,omitempty"`
	TranscriptClean  *string   `gorm:"type:text" json:"transcript_clean"`
	FailureReason    *string   `gorm:"type:text" json:"failure_reason,omitempty"`
	IdempotencyToken *string   `gorm:"index" json:"-"`
}

// SetFailure records a failure reason truncated to MaxFailureReasonLen.
func (e *Entry) SetFailure(reason string) {
	if len(reason) > MaxFailureReasonLen {
		reason = reason[:MaxFailureReasonLen]
	}
	e.Status = EntryStatusFailed
	e.FailureReason = &reason
}

// ValidEntryTransition reports whether an entry may move from one status to
// another. Status only moves forward through uploaded -> processing ->
// {transcribed, failed}; failed -> processing is allowed for re-enqueue.
func ValidEntryTransition(from, to string) bool {
	switch from {
	case EntryStatusUploaded:
		return to == EntryStatusProcessing
	case EntryStatusProcessing:
		return to == EntryStatusTranscribed || to == EntryStatusFailed
	case EntryStatusFailed:
		return to == EntryStatusProcessing
	default:
		return false
	}
}
