package summary

import "time"

type DocumentState string

const (
	StateUnprocessed DocumentState = "unprocessed"
	StateProcessed   DocumentState = "processed"
	StateFailed      DocumentState = "failed"
)

// Document is a source page queued for summarization. State only changes through the
// work queue; the claim columns form a lease that keeps a row exclusive to one claimer
// after the claiming transaction commits.
type Document struct {
	ID          int64         `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Title       string        `gorm:"column:title;type:varchar(255);index" json:"title"`
	Content     string        `gorm:"column:content;type:text" json:"-"`
	State       DocumentState `gorm:"column:state;type:varchar(16);not null;default:'unprocessed';index" json:"state"`
	Attempts    int           `gorm:"column:attempts;not null;default:0" json:"attempts"`
	ClaimedAt   *time.Time    `gorm:"column:claimed_at;index" json:"claimed_at,omitempty"`
	ClaimToken  *string       `gorm:"column:claim_token;type:varchar(64)" json:"claim_token,omitempty"`
	LastError   string        `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	LastErrorAt *time.Time    `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	UpdatedAt   time.Time     `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Document) TableName() string { return "wikipedia_pages" }

// DocumentRef is what a claim hands to a worker.
type DocumentRef struct {
	ID    int64
	Title string
}
