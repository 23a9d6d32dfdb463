package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/brightpath/storefront/internal/database"
	"github.com/brightpath/storefront/internal/entity"
)

var repoTracer = otel.Tracer("github.com/brightpath/storefront/repository/user")

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// Repository provides read access to user records.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a repository backed by the read connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// GetByAPIToken resolves an API token to its user.
func (r *Repository) GetByAPIToken(ctx context.Context, token string) (*entity.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	ctx, span := repoTracer.Start(ctx, "UserRepository.GetByAPIToken")
	defer span.End()

	user := new(entity.User)
	err := r.reader.NewSelect().Model(user).Where("api_token = ?", token).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return user, nil
}

// GetByID fetches a user by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.GetByID")
	defer span.End()

	user := new(entity.User)
	err := r.reader.NewSelect().Model(user).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return user, nil
}
