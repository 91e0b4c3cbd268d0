package models

import "time"

// User holds per-user state the aggregation backend needs: the bookmark list
// lives directly on the user record, keyed by job id.
type User struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Email     string    `json:"email,omitempty"`
	Bookmarks []string  `gorm:"serializer:json" json:"bookmarks"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasBookmark reports whether the job id is already saved.
func (u *User) HasBookmark(jobID string) bool {
	for _, id := range u.Bookmarks {
		if id == jobID {
			return true
		}
	}
	return false
}

// SavedSearch is a named, persisted JobFilter a user can re-run.
type SavedSearch struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	Name      string    `gorm:"not null" json:"name"`
	Filter    JobFilter `gorm:"serializer:json" json:"filter"`
	CreatedAt time.Time `json:"created_at"`
}
