package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Product categories.
const (
	CategoryEbook  = "ebook"
	CategoryCourse = "course"
)

// Product is a purchasable digital good. The reconciliation core treats
// products as read-only.
type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID          int64     `bun:",pk,autoincrement"`
	Name        string    `bun:"name"`
	Description string    `bun:"description"`
	PriceMinor  int64     `bun:"price_minor"`
	Category    string    `bun:"category"`
	ImageURL    string    `bun:"image_url,nullzero"`
	FileURL     string    `bun:"file_url,nullzero"`
	IsActive    bool      `bun:"is_active"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
