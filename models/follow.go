package models

import "time"

// Follow is a directed subscription edge: User follows Author. The composite
// unique index keeps the edge deduplicated even under concurrent follows; the
// insert path relies on it with an ON CONFLICT DO NOTHING clause.
type Follow struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index;index:idx_follows_pair,unique" json:"user_id"`
	AuthorID  uint      `gorm:"not null;index:idx_follows_pair,unique" json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Author    User      `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}
