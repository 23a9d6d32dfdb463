package product

import "github.com/brightpath/storefront/internal/entity"

// staticCatalog holds the launch courses that predate catalog management in
// the admin UI. They behave exactly like database products; the merged
// repository hides the difference from every caller.
var staticCatalog = []entity.Product{
	{
		ID:          201,
		Name:        "Trading Starter Course",
		Description: "Complete beginner course with video lessons and PDF materials.",
		PriceMinor:  19900,
		Category:    entity.CategoryCourse,
		ImageURL:    "/static/images/products/trading-starter-course.jpg",
		FileURL:     "/content/videos/trading-starter-course.mp4",
		IsActive:    true,
	},
	{
		ID:          202,
		Name:        "Advanced Trading Course",
		Description: "Advanced strategies and risk management for serious traders.",
		PriceMinor:  29900,
		Category:    entity.CategoryCourse,
		ImageURL:    "/static/images/products/advanced-trading-course.jpg",
		FileURL:     "/content/videos/advanced-trading-course.mp4",
		IsActive:    true,
	},
}

func staticByID(id int64) (*entity.Product, bool) {
	for i := range staticCatalog {
		if staticCatalog[i].ID == id {
			p := staticCatalog[i]
			return &p, true
		}
	}
	return nil, false
}

func staticByFileURL(fileURL string) (*entity.Product, bool) {
	for i := range staticCatalog {
		if staticCatalog[i].FileURL == fileURL {
			p := staticCatalog[i]
			return &p, true
		}
	}
	return nil, false
}
