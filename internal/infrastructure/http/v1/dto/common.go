// Package dto provides Data Transfer Objects for API requests/responses.
// Snowflake ids are rendered as strings; JavaScript clients lose precision
// on integers above 2^53.
package dto

import (
	"strconv"
	"time"
)

// IDResponse is returned by create endpoints.
type IDResponse struct {
	ID string `json:"id"`
}

// ListResponse wraps list results with pagination.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// PageRequest binds limit/offset query parameters.
type PageRequest struct {
	Limit  int `form:"limit" binding:"min=0,max=200"`
	Offset int `form:"offset" binding:"min=0"`
}

// AuditResponse carries audit stamps.
type AuditResponse struct {
	Created        time.Time  `json:"created"`
	CreatedBy      *string    `json:"createdBy,omitempty"`
	LastModified   *time.Time `json:"lastModified,omitempty"`
	LastModifiedBy *string    `json:"lastModifiedBy,omitempty"`
}

// FormatID renders a snowflake id.
func FormatID(v int64) string {
	return strconv.FormatInt(v, 10)
}

// FormatActor renders an optional actor id.
func FormatActor(v *int64) *string {
	if v == nil {
		return nil
	}
	s := FormatID(*v)
	return &s
}
