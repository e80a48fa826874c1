package models

import "time"

// Document is the catalog record of one uploaded file.
type Document struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Size       int64     `json:"size" db:"size"`
	Pages      int       `json:"pages" db:"pages"`
	Chunks     int       `json:"chunks" db:"chunks"`
	SourcePath string    `json:"source_path,omitempty" db:"source_path"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Exchange is one question/answer turn of the conversation history.
// Degraded is set when Answer carries a generation failure instead of model output.
type Exchange struct {
	ID        string    `json:"id" db:"id"`
	Question  string    `json:"question" db:"question"`
	Answer    string    `json:"answer" db:"answer"`
	Degraded  bool      `json:"degraded" db:"degraded"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
