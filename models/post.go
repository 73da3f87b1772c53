package models

import (
	"encoding/json"
	"time"

	"github.com/pulseblog/pulse/config"
)

// Post is an authored text entry, optionally categorized into a group and
// illustrated with an uploaded image. Deleting the group clears GroupID on
// its posts instead of cascading; deleting the author removes their posts.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	AuthorID  uint      `gorm:"index;not null" json:"author_id"`
	GroupID   *uint     `gorm:"index" json:"group_id,omitempty"`
	Image     string    `gorm:"size:1024" json:"image,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"pub_date"`
	UpdatedAt time.Time `json:"-"`
	Author    User      `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Group     *Group    `gorm:"foreignKey:GroupID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"group,omitempty"`
	Comments  []Comment `gorm:"foreignKey:PostID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"comments,omitempty"`
}

// Excerpt returns the first n runes of the post text, used wherever a short
// preview is rendered.
func (p Post) Excerpt(n int) string {
	runes := []rune(p.Text)
	if n <= 0 || len(runes) <= n {
		return p.Text
	}
	return string(runes[:n])
}

// MarshalJSON renders the post with a short preview truncated to the
// configured excerpt length alongside the regular fields.
func (p Post) MarshalJSON() ([]byte, error) {
	type alias Post
	return json.Marshal(struct {
		alias
		Excerpt string `json:"excerpt"`
	}{alias(p), p.Excerpt(config.Get().ExcerptLength)})
}
