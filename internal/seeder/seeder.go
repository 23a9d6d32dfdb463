package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/brightpath/storefront/internal/database"
	"github.com/brightpath/storefront/internal/entity"
)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// Run seeds demo users and catalog products if they are missing.
func (s *Seeder) Run(ctx context.Context) error {
	if err := s.users(ctx); err != nil {
		return err
	}
	return s.products(ctx)
}

func (s *Seeder) users(ctx context.Context) error {
	now := time.Now().UTC()
	samples := []entity.User{
		{Username: "admin", Email: "admin@storefront.local", Role: entity.RoleAdmin, APIToken: "dev-admin-token", CreatedAt: now},
		{Username: "buyer", Email: "buyer@storefront.local", Role: entity.RoleBuyer, APIToken: "dev-buyer-token", CreatedAt: now},
	}

	for _, sample := range samples {
		user := sample
		_, err := s.db.NewInsert().Model(&user).
			On("CONFLICT (email) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded users", zap.Int("count", len(samples)))
	}
	return nil
}

func (s *Seeder) products(ctx context.Context) error {
	now := time.Now().UTC()
	samples := []entity.Product{
		{
			Name:        "Market Basics eBook",
			Description: "Foundations of market structure and terminology.",
			PriceMinor:  4900,
			Category:    entity.CategoryEbook,
			FileURL:     "/content/ebooks/market-basics.pdf",
			IsActive:    true,
			CreatedAt:   now,
		},
	}

	for _, sample := range samples {
		product := sample
		_, err := s.db.NewInsert().Model(&product).
			On("CONFLICT (file_url) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded products", zap.Int("count", len(samples)))
	}
	return nil
}
