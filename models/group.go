package models

import "time"

// Group is a named category posts may optionally belong to. Groups are
// managed through the admin endpoints; regular users only pick one when
// posting.
type Group struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Slug        string    `gorm:"size:64;uniqueIndex;not null" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// String renders a group by its title.
func (g Group) String() string {
	return g.Title
}
