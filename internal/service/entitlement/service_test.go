package entitlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightpath/storefront/internal/auth"
	"github.com/brightpath/storefront/internal/entity"
	productrepo "github.com/brightpath/storefront/internal/repository/product"
	"github.com/brightpath/storefront/pkg/errorbank"
)

type fakeOrders struct {
	completed map[[2]int64]bool
}

func (f *fakeOrders) HasCompletedOrder(_ context.Context, userID, productID int64) (bool, error) {
	return f.completed[[2]int64{userID, productID}], nil
}

type fakeProducts struct {
	byFileURL map[string]*entity.Product
}

func (f *fakeProducts) GetByFileURL(_ context.Context, fileURL string) (*entity.Product, error) {
	p, ok := f.byFileURL[fileURL]
	if !ok {
		return nil, productrepo.ErrNotFound
	}
	return p, nil
}

const courseAsset = "/content/videos/trading-starter-course.mp4"

func testService(completed map[[2]int64]bool) *Service {
	return NewService(Params{
		Orders: &fakeOrders{completed: completed},
		Products: &fakeProducts{byFileURL: map[string]*entity.Product{
			courseAsset: {ID: 201, FileURL: courseAsset, IsActive: true},
		}},
		Logger: zap.NewNop(),
	})
}

func TestCanAccessRequiresCompletedOrder(t *testing.T) {
	svc := testService(map[[2]int64]bool{{10, 201}: true})

	ok, err := svc.CanAccess(context.Background(), auth.Principal{UserID: 10, Role: entity.RoleBuyer}, courseAsset)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CanAccess(context.Background(), auth.Principal{UserID: 11, Role: entity.RoleBuyer}, courseAsset)
	require.NoError(t, err)
	assert.False(t, ok, "pending or failed orders grant nothing")
}

func TestCanAccessAdminOverride(t *testing.T) {
	svc := testService(nil)

	ok, err := svc.CanAccess(context.Background(), auth.Principal{UserID: 1, Role: entity.RoleAdmin}, courseAsset)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanAccessUnknownAsset(t *testing.T) {
	svc := testService(nil)

	_, err := svc.CanAccess(context.Background(), auth.Principal{UserID: 10}, "/content/videos/nope.mp4")
	require.Error(t, err)
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestCanAccessReflectsCurrentState(t *testing.T) {
	// The decision is recomputed each call; flipping the underlying order
	// state flips the answer with no caching in between.
	completed := map[[2]int64]bool{}
	svc := testService(completed)
	principal := auth.Principal{UserID: 10, Role: entity.RoleBuyer}

	ok, err := svc.CanAccess(context.Background(), principal, courseAsset)
	require.NoError(t, err)
	assert.False(t, ok)

	completed[[2]int64{10, 201}] = true
	ok, err = svc.CanAccess(context.Background(), principal, courseAsset)
	require.NoError(t, err)
	assert.True(t, ok)
}
