package template

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("template not found")

// Template is a localized message body for a given company and code.
type Template struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"companyId"`
	Code      string    `json:"code"`
	Language  string    `json:"language"`
	Body      string    `json:"body"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
