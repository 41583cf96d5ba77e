package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hsaleh/blog_platform/internal/util"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	Email        string `gorm:"unique;not null"          json:"email"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	IsActive     bool   `gorm:"default:true"             json:"is_active"`
}

type Post struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"  json:"id"`
	Title     string    `gorm:"size:255;not null"     json:"title"`
	Content   string    `gorm:"not null"              json:"content"`
	AuthorID  uint      `gorm:"index;not null"        json:"author_id"`
	Author    User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	Slug      string    `gorm:"size:255"              json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeSave recomputes the slug from the title on every write, so a
// title change always refreshes the slug.
func (p *Post) BeforeSave(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Slug = util.Slugify(p.Title)
	p.UpdatedAt = time.Now()
	return nil
}

// BlacklistedToken is the denylist entry for a refresh token. Inserting
// a row is the terminal state transition: a listed token can never be
// refreshed or blacklisted again.
type BlacklistedToken struct {
	ID            uint      `gorm:"primaryKey"      json:"id"`
	Token         string    `gorm:"unique;not null" json:"token"`
	UserID        uint      `gorm:"index;not null"  json:"user_id"`
	ExpiresAt     int64     `gorm:"not null"        json:"expires_at"`
	BlacklistedAt time.Time `gorm:"autoCreateTime"  json:"blacklisted_at"`
}
