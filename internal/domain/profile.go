package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the slice.
//   - error: non-nil if marshaling fails.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	b, err := columnBytes(value)
	if err != nil {
		return errors.New("failed to scan StringArray")
	}
	return json.Unmarshal(b, a)
}

// Position is one entry of a profile's work history.
type Position struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	Description string `json:"description,omitempty"`
}

// Experience is the JSON column holding a profile's positions.
type Experience []Position

// Value implements the driver.Valuer interface for database serialization.
func (e Experience) Value() (driver.Value, error) {
	if e == nil {
		return "[]", nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (e *Experience) Scan(value interface{}) error {
	if value == nil {
		*e = Experience{}
		return nil
	}
	b, err := columnBytes(value)
	if err != nil {
		return errors.New("failed to scan Experience")
	}
	return json.Unmarshal(b, e)
}

// Profile is the professional profile a job scores.
type Profile struct {
	ID         string      `gorm:"type:varchar(128);primaryKey" json:"id"`
	FullName   string      `gorm:"type:text;not null" json:"full_name"`
	Headline   string      `gorm:"type:text" json:"headline,omitempty"`
	Location   string      `gorm:"type:text" json:"location,omitempty"`
	Summary    string      `gorm:"type:text" json:"summary,omitempty"`
	Skills     StringArray `gorm:"type:text" json:"skills,omitempty"`
	Experience Experience  `gorm:"type:text" json:"experience,omitempty"`
	Education  StringArray `gorm:"type:text" json:"education,omitempty"`
	SourceURL  string      `gorm:"type:text" json:"source_url,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string {
	return "profiles"
}

// PromptTemplate is a stored, reusable scoring prompt.
// Body may reference {{PROFILE_JSON}}, {{PROFILE_NAME}} and {{ROLE}}.
type PromptTemplate struct {
	ID          string    `gorm:"type:varchar(128);primaryKey" json:"id"`
	Role        string    `gorm:"type:varchar(64);not null" json:"role"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Body        string    `gorm:"type:text;not null" json:"body"`
	IsEnabled   bool      `gorm:"default:true" json:"is_enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for PromptTemplate.
func (PromptTemplate) TableName() string {
	return "prompt_templates"
}
