// Package product merges the database-backed catalog with the built-in
// static catalog behind one repository, so callers never special-case where
// a product lives. Reads are cached; the reconciliation core treats
// products as immutable.
package product

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/brightpath/storefront/internal/cache"
	"github.com/brightpath/storefront/internal/config"
	"github.com/brightpath/storefront/internal/database"
	"github.com/brightpath/storefront/internal/entity"
)

var repoTracer = otel.Tracer("github.com/brightpath/storefront/repository/product")

// ErrNotFound is returned when no product matches the lookup.
var ErrNotFound = errors.New("product not found")

// Repository resolves products from the database first, then the static
// catalog.
type Repository struct {
	reader   *bun.DB
	cache    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewRepository wires the merged catalog repository.
func NewRepository(conns *database.Connections, store cache.Store, cfg config.Config, logger *zap.Logger) *Repository {
	return &Repository{
		reader:   conns.Reader,
		cache:    store,
		cacheTTL: cfg.Cache.DefaultTTL,
		logger:   logger,
	}
}

// GetByID resolves a product by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.GetByID", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	key := fmt.Sprintf("products:id:%d", id)
	if p, ok := r.fromCache(ctx, key); ok {
		return p, nil
	}

	p := new(entity.Product)
	err := r.reader.NewSelect().Model(p).Where("id = ?", id).Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		static, ok := staticByID(id)
		if !ok {
			span.SetStatus(codes.Error, "not found")
			return nil, ErrNotFound
		}
		p = static
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}

	r.toCache(ctx, key, p)
	return p, nil
}

// GetByFileURL resolves the product that owns a content asset path. This is
// how the entitlement check maps an asset back to a purchasable product.
func (r *Repository) GetByFileURL(ctx context.Context, fileURL string) (*entity.Product, error) {
	if fileURL == "" {
		return nil, ErrNotFound
	}
	ctx, span := repoTracer.Start(ctx, "ProductRepository.GetByFileURL", trace.WithAttributes(attribute.String("product.file_url", fileURL)))
	defer span.End()

	key := "products:file:" + fileURL
	if p, ok := r.fromCache(ctx, key); ok {
		return p, nil
	}

	p := new(entity.Product)
	err := r.reader.NewSelect().Model(p).Where("file_url = ?", fileURL).Limit(1).Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		static, ok := staticByFileURL(fileURL)
		if !ok {
			span.SetStatus(codes.Error, "not found")
			return nil, ErrNotFound
		}
		p = static
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}

	r.toCache(ctx, key, p)
	return p, nil
}

func (r *Repository) fromCache(ctx context.Context, key string) (*entity.Product, bool) {
	if r.cache == nil {
		return nil, false
	}
	bytes, err := r.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) && r.logger != nil {
			r.logger.Warn("product cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var p entity.Product
	if err := json.Unmarshal(bytes, &p); err != nil {
		return nil, false
	}
	return &p, true
}

func (r *Repository) toCache(ctx context.Context, key string, p *entity.Product) {
	if r.cache == nil || p == nil {
		return
	}
	bytes, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, bytes, r.cacheTTL); err != nil && r.logger != nil {
		r.logger.Warn("product cache write failed", zap.String("key", key), zap.Error(err))
	}
}
