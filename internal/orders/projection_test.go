package orders

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skshopping/shop-backend/internal/catalog"
	"github.com/skshopping/shop-backend/internal/testsupport"
	"github.com/skshopping/shop-backend/pkg/db/models"
	"github.com/skshopping/shop-backend/pkg/enums"
)

func renderOne(t *testing.T, p *Projector, order models.Order, level, descendant enums.FetchLevel) map[string]any {
	t.Helper()
	views, err := p.Render(context.Background(), []models.Order{order}, level, descendant)
	require.NoError(t, err)
	require.Len(t, views, 1)
	raw, err := json.Marshal(views[0])
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestProjectorLevels(t *testing.T) {
	conn := testsupport.OpenDB(t)
	fx := testsupport.SeedShop(t, conn, "sk")
	item := fx.SeedItem(t, conn, "shirt", 100, 10)
	order := testsupport.SeedOrder(t, conn, testsupport.OrderSeed{ShopID: fx.Shop.ID, ItemID: item.ID, Amount: 2, UnitPrice: 100})
	p := NewProjector(catalog.NewRepository(conn), testHold)

	idOnly := renderOne(t, p, order, enums.FetchIDOnly, enums.FetchIDOnly)
	require.Equal(t, map[string]any{"id": order.ID.String()}, idOnly)

	compact := renderOne(t, p, order, enums.FetchCompact, enums.FetchIDOnly)
	require.Len(t, compact, 5)
	require.Equal(t, "not_shipped_out", compact["shipment_status"])
	require.EqualValues(t, 200, compact["total_price"])

	def := renderOne(t, p, order, enums.FetchDefault, enums.FetchIDOnly)
	require.Equal(t, order.RefID, def["ref_id"])
	require.Equal(t, []any{"Gate 1"}, def["pickup_location"])
	lines := def["items"].([]any)
	require.Len(t, lines, 1)
	require.Len(t, lines[0].(map[string]any), 1)
	require.NotContains(t, def, "shop_id")

	detailed := renderOne(t, p, order, enums.FetchDetailed, enums.FetchDetailed)
	require.Equal(t, fx.Shop.ID.String(), detailed["shop_id"])
	require.Equal(t, true, detailed["holds_stock"])
	line := detailed["items"].([]any)[0].(map[string]any)
	require.Equal(t, "shirt", line["name"])
	require.EqualValues(t, 100, line["unit_price"])
	require.EqualValues(t, 2, line["amount"])
}

func TestProjectorReportsLapsedHold(t *testing.T) {
	conn := testsupport.OpenDB(t)
	fx := testsupport.SeedShop(t, conn, "sk")
	item := fx.SeedItem(t, conn, "shirt", 100, 10)
	order := testsupport.SeedOrder(t, conn, testsupport.OrderSeed{
		ShopID: fx.Shop.ID, ItemID: item.ID, Amount: 1, UnitPrice: 100,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	})
	p := NewProjector(catalog.NewRepository(conn), testHold)

	detailed := renderOne(t, p, order, enums.FetchDetailed, enums.FetchCompact)
	require.Equal(t, false, detailed["holds_stock"])
	line := detailed["items"].([]any)[0].(map[string]any)
	require.NotContains(t, line, "name")
}
