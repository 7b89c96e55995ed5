package model

import (
	"database/sql/driver"
	"strings"
	"time"
)

const (
	InputKindDocument = "document"
	InputKindPDF      = "pdf"
	InputKindAudio    = "audio"
	InputKindVideo    = "video"
	InputKindText     = "text"
)

const (
	InputStatusUploaded  = "uploaded"
	InputStatusProcessed = "processed"
	InputStatusFailed    = "failed"
)

// TranscriptSegment is one timestamped span of an audio or video transcript.
// Start and End are seconds from the beginning of the media.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Transcript []TranscriptSegment

func (t Transcript) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	return jsonValue(t)
}

func (t *Transcript) Scan(value interface{}) error {
	if value == nil {
		*t = Transcript{}
		return nil
	}
	return scanJSON(value, t)
}

// PlainText joins the transcript segments in order.
func (t Transcript) PlainText() string {
	parts := make([]string, 0, len(t))
	for _, seg := range t {
		if s := strings.TrimSpace(seg.Text); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

type InputData struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	ProjectID     uint       `gorm:"not null;index:idx_input_data_project_id" json:"project_id"`
	Name          string     `gorm:"type:varchar(255);not null" json:"name"`
	Kind          string     `gorm:"type:varchar(16);not null" json:"kind"`
	StorageKey    string     `gorm:"type:varchar(512)" json:"-"`
	ContentType   string     `gorm:"type:varchar(128)" json:"content_type"`
	SizeBytes     int64      `json:"size_bytes"`
	Status        string     `gorm:"type:varchar(16);default:uploaded" json:"status"`
	ExtractedText string     `gorm:"type:text" json:"extracted_text,omitempty"`
	Transcript    Transcript `gorm:"type:json" json:"transcript"`
	Metadata      JSONMap    `gorm:"type:json" json:"metadata,omitempty"`
	UploadedBy    uint       `json:"uploaded_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Project *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
}

func (InputData) TableName() string { return "input_data" }

// SourceText is the text fed to requirement derivation.
func (d *InputData) SourceText() string {
	if strings.TrimSpace(d.ExtractedText) != "" {
		return d.ExtractedText
	}
	return d.Transcript.PlainText()
}

// KindFromContentType guesses the input kind from an upload's MIME type.
func KindFromContentType(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "audio/"):
		return InputKindAudio
	case strings.HasPrefix(ct, "video/"):
		return InputKindVideo
	case ct == "application/pdf":
		return InputKindPDF
	case strings.HasPrefix(ct, "text/"):
		return InputKindText
	default:
		return InputKindDocument
	}
}
