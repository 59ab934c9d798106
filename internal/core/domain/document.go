package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded       DocumentStatus = "uploaded"
	StatusPaymentPending DocumentStatus = "payment_pending"
	StatusPaid           DocumentStatus = "paid"
	StatusAnalyzing      DocumentStatus = "analyzing"
	StatusAnalyzed       DocumentStatus = "analyzed"
	StatusFailed         DocumentStatus = "failed"
)

const (
	MimeTypePDF  = "application/pdf"
	MimeTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	// MaxUploadBytes is the largest accepted source file (20 MiB).
	MaxUploadBytes int64 = 20 << 20
)

// Terminal reports whether no further transition can leave the status.
func (s DocumentStatus) Terminal() bool {
	return s == StatusAnalyzed || s == StatusFailed
}

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusPaymentPending, StatusPaid, StatusAnalyzing, StatusAnalyzed, StatusFailed:
		return true
	default:
		return false
	}
}

var forwardTransitions = map[DocumentStatus]DocumentStatus{
	StatusUploaded:       StatusPaymentPending,
	StatusPaymentPending: StatusPaid,
	StatusPaid:           StatusAnalyzing,
	StatusAnalyzing:      StatusAnalyzed,
}

// CanTransition encodes the document state machine: one step forward at a
// time, or into failed from any non-terminal status.
func CanTransition(from, to DocumentStatus) bool {
	if from.Terminal() || !to.Valid() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	next, ok := forwardTransitions[from]
	return ok && next == to
}

type Document struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Filename        string          `json:"filename"`
	MimeType        string          `json:"mime_type"`
	FileSize        int64           `json:"file_size"`
	CharCount       int             `json:"char_count"`
	Cost            int64           `json:"cost"`
	Currency        string          `json:"currency"`
	Status          DocumentStatus  `json:"status"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	Options         AnalysisOptions `json:"analysis_options,omitempty"`
	Result          *AnalysisResult `json:"analysis_result,omitempty"`
	StoragePath     string          `json:"-"`
	TextPath        string          `json:"-"`
	Error           string          `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewDocument carries the immutable upload facts handed to the lifecycle.
type NewDocument struct {
	Title       string
	Filename    string
	MimeType    string
	FileSize    int64
	CharCount   int
	StoragePath string
	TextPath    string
}

func SupportedMimeType(mimeType string) bool {
	return mimeType == MimeTypePDF || mimeType == MimeTypeDOCX
}
