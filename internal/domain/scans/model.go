package scans

import "time"

// Scan is one stored resume assessment. UserID is nil for anonymous callers.
type Scan struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          *uint     `gorm:"index" json:"-"`
	IPAddress       string    `gorm:"size:45" json:"-"`
	FileName        string    `gorm:"size:255" json:"file_name"`
	Industry        string    `gorm:"size:100" json:"industry,omitempty"`
	Content         string    `gorm:"type:text" json:"-"`
	JobDescription  string    `gorm:"type:text" json:"-"`
	Score           int       `json:"score"`
	Feedback        string    `gorm:"type:text" json:"feedback"`
	OptimizedResume string    `gorm:"type:text" json:"optimized_resume,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
