//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/ariefcatur/go-jewelry-storefront/internal/cart"
	"github.com/ariefcatur/go-jewelry-storefront/internal/catalog"
	"github.com/ariefcatur/go-jewelry-storefront/internal/orders"
	"github.com/ariefcatur/go-jewelry-storefront/internal/postgres"
	"github.com/ariefcatur/go-jewelry-storefront/internal/reviews"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestCheckoutFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	pgC, dsn := startPostgres(ctx, t)
	defer terminateContainer(t, pgC)

	// the port opens before the init scripts finish restarting the server
	require.Eventually(t, func() bool { return postgres.RunMigrations(dsn) == nil }, 30*time.Second, time.Second)

	pool, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	productID, ringID, largeRingID := seedCatalog(ctx, t, pool)

	// catalog
	products := &catalog.Repo{DB: pool}
	p, err := products.GetProductBySlug(ctx, "bague-lune")
	require.NoError(t, err)
	assert.Equal(t, productID, p.ID)
	require.Len(t, p.Variants, 2)

	// cart
	carts := &cart.Service{Store: &cart.Repo{DB: pool}}
	c, created, err := carts.Add(ctx, "", ringID, 2)
	require.NoError(t, err)
	require.True(t, created)
	_, _, err = carts.Add(ctx, c.ID, ringID, 1)
	require.NoError(t, err)
	c, _, err = carts.Add(ctx, c.ID, largeRingID, 1)
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	assert.Equal(t, int64(3*4500+8000), c.Total())

	_, _, err = carts.Add(ctx, c.ID, uuid.NewString(), 1)
	assert.ErrorIs(t, err, cart.ErrUnknownVariant)

	// order from cart, twice for the same session
	repo := &orders.Repo{DB: pool}
	ck := orders.Checkout{
		SessionID:       "cs_test_" + uuid.NewString(),
		PaymentIntentID: "pi_test_1",
		CartID:          c.ID,
		Email:           "",
		ShippingAddress: json.RawMessage(`{"name":"Lola","address":{"city":"Lyon","country":"FR"}}`),
	}
	o, existed, err := repo.CreateFromCart(ctx, ck)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, c.Total(), o.Total)
	assert.Equal(t, orders.GuestEmail, o.Email)

	again, existed, err := repo.CreateFromCart(ctx, ck)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, o.ID, again.ID)

	emptied, _, err := carts.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, emptied.Items)

	stored, err := repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	var sum int64
	for _, it := range stored.Items {
		sum += it.Price * int64(it.Quantity)
	}
	assert.Equal(t, stored.Total, sum)

	ids, err := repo.MarkCompletedByPaymentIntent(ctx, "pi_test_1")
	require.NoError(t, err)
	assert.Equal(t, []string{o.ID}, ids)
	status, err := repo.GetOrderStatus(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCompleted, status)

	// stock
	res := &orders.ReservationRepo{DB: pool}
	ok, details, err := res.ReserveAll(ctx, o.ID, []orders.ItemQty{{VariantID: ringID, Qty: 3}, {VariantID: largeRingID, Qty: 5}})
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, details, 1)
	assert.Equal(t, largeRingID, details[0].VariantID)

	ok, _, err = res.ReserveAll(ctx, o.ID, []orders.ItemQty{{VariantID: ringID, Qty: 3}, {VariantID: largeRingID, Qty: 1}})
	require.NoError(t, err)
	assert.True(t, ok)
	done, err := res.AlreadyReserved(ctx, o.ID, 2)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 7, stockOf(ctx, t, pool, ringID))

	require.NoError(t, res.ReleaseAll(ctx, o.ID))
	assert.Equal(t, 10, stockOf(ctx, t, pool, ringID))

	// totals beyond int32 cents
	tiaraID := uuid.NewString()
	_, err = pool.Exec(ctx, `INSERT INTO product_variants(id, product_id, name, price, stock) VALUES ($1, $2, 'Diadème', 1500000000, 3)`,
		tiaraID, productID)
	require.NoError(t, err)
	big, _, err := carts.Add(ctx, "", tiaraID, 2)
	require.NoError(t, err)
	bigOrder, _, err := repo.CreateFromCart(ctx, orders.Checkout{SessionID: "cs_test_" + uuid.NewString(), PaymentIntentID: "pi_test_2", CartID: big.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(3000000000), bigOrder.Total)
	storedBig, err := repo.GetOrder(ctx, bigOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000000000), storedBig.Total)
	assert.Equal(t, int64(1500000000), storedBig.Items[0].Price)

	// reviews
	rv := &reviews.Repo{DB: pool}
	stars := 4
	created2, err := rv.Create(ctx, reviews.NewReview{ProductID: productID, AuthorName: "Lola", Content: "Superbe", Stars: &stars})
	require.NoError(t, err)
	assert.Nil(t, created2.AuthorImage)
	list, err := rv.List(ctx, productID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func seedCatalog(ctx context.Context, t *testing.T, pool *pgxpool.Pool) (productID, ringID, largeRingID string) {
	t.Helper()
	productID, ringID, largeRingID = uuid.NewString(), uuid.NewString(), uuid.NewString()
	_, err := pool.Exec(ctx, `INSERT INTO products(id, name, slug, images) VALUES ($1, 'Bague Lune', 'bague-lune', '{p.jpg}')`, productID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO product_variants(id, product_id, name, price, stock) VALUES
		($1, $3, 'Or 52', 4500, 10),
		($2, $3, 'Or 54', 8000, 2)`, ringID, largeRingID, productID)
	require.NoError(t, err)
	return
}

func stockOf(ctx context.Context, t *testing.T, pool *pgxpool.Pool, variantID string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT stock FROM product_variants WHERE id=$1`, variantID).Scan(&n))
	return n
}

func startPostgres(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "storefront"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/storefront?sslmode=disable", host, mappedPort.Port())
	return container, dsn
}

func terminateContainer(t *testing.T, c testcontainers.Container) {
	t.Helper()
	terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.Terminate(terminateCtx))
}
