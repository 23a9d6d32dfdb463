package checkout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightpath/storefront/internal/auth"
	"github.com/brightpath/storefront/internal/config"
	"github.com/brightpath/storefront/internal/entity"
	"github.com/brightpath/storefront/internal/gateway"
	productrepo "github.com/brightpath/storefront/internal/repository/product"
	"github.com/brightpath/storefront/pkg/errorbank"
)

type fakeOrders struct {
	created          []*entity.Order
	processorOrderID string
	attachedTo       int64
}

func (f *fakeOrders) Create(_ context.Context, order *entity.Order) error {
	order.ID = int64(len(f.created) + 1)
	f.created = append(f.created, order)
	return nil
}

func (f *fakeOrders) SetProcessorOrderID(_ context.Context, id int64, processorOrderID string) error {
	f.attachedTo = id
	f.processorOrderID = processorOrderID
	return nil
}

type fakeProducts struct {
	products map[int64]*entity.Product
}

func (f *fakeProducts) GetByID(_ context.Context, id int64) (*entity.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, productrepo.ErrNotFound
	}
	return p, nil
}

type fakeGateway struct {
	remote *gateway.RemoteOrder
	err    error

	gotAmount   int64
	gotCurrency string
}

func (f *fakeGateway) CreateOrder(_ context.Context, amountMinor int64, currency string) (*gateway.RemoteOrder, error) {
	f.gotAmount = amountMinor
	f.gotCurrency = currency
	if f.err != nil {
		return nil, f.err
	}
	return f.remote, nil
}

func testService(orders *fakeOrders, gw *fakeGateway) *Service {
	cfg := config.Config{}
	cfg.Payment.KeyID = "key_test"
	cfg.Payment.Currency = "INR"
	cfg.Payment.Timeout = 1e9
	cfg.Messaging.Enabled = false
	products := &fakeProducts{products: map[int64]*entity.Product{
		201: {ID: 201, Name: "Trading Starter Course", PriceMinor: 19900, Category: entity.CategoryCourse, IsActive: true},
		202: {ID: 202, Name: "Retired Course", PriceMinor: 9900, IsActive: false},
	}}
	return NewService(Params{
		Orders:   orders,
		Products: products,
		Gateway:  gw,
		Config:   cfg,
		Logger:   zap.NewNop(),
	})
}

func TestCheckoutCreatesOrderAndRemoteOrder(t *testing.T) {
	orders := &fakeOrders{}
	gw := &fakeGateway{remote: &gateway.RemoteOrder{ID: "order_abc"}}
	svc := testService(orders, gw)

	res, err := svc.Checkout(context.Background(), auth.Principal{UserID: 10}, 201, "razorpay")
	require.NoError(t, err)

	assert.Equal(t, "order_abc", res.ProcessorOrderID)
	assert.Equal(t, "key_test", res.KeyID)
	assert.Equal(t, entity.OrderPending, res.Order.Status)
	assert.Equal(t, int64(19900), gw.gotAmount, "gateway receives integer minor units")
	assert.Equal(t, "INR", gw.gotCurrency)
	assert.Equal(t, res.Order.ID, orders.attachedTo)
	assert.Equal(t, "order_abc", orders.processorOrderID)
}

func TestCheckoutGatewayUnavailableLeavesOrderPending(t *testing.T) {
	orders := &fakeOrders{}
	gw := &fakeGateway{err: gateway.ErrUnavailable}
	svc := testService(orders, gw)

	_, err := svc.Checkout(context.Background(), auth.Principal{UserID: 10}, 201, "razorpay")
	require.Error(t, err)
	assert.Equal(t, errorbank.KindUnprocessableEntity, errorbank.From(err).Kind())

	// The local order exists but never received a processor id, so no
	// signature can ever complete it.
	require.Len(t, orders.created, 1)
	assert.Equal(t, entity.OrderPending, orders.created[0].Status)
	assert.Empty(t, orders.processorOrderID)
}

func TestCheckoutUnknownProduct(t *testing.T) {
	svc := testService(&fakeOrders{}, &fakeGateway{})
	_, err := svc.Checkout(context.Background(), auth.Principal{UserID: 10}, 999, "razorpay")
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestCheckoutInactiveProduct(t *testing.T) {
	svc := testService(&fakeOrders{}, &fakeGateway{})
	_, err := svc.Checkout(context.Background(), auth.Principal{UserID: 10}, 202, "razorpay")
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestCheckoutUnsupportedMethod(t *testing.T) {
	orders := &fakeOrders{}
	svc := testService(orders, &fakeGateway{})
	_, err := svc.Checkout(context.Background(), auth.Principal{UserID: 10}, 201, "stripe")
	assert.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
	assert.Empty(t, orders.created)
}
