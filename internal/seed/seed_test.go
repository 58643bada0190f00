package seed

import (
	"testing"

	"github.com/glebarez/sqlite"
	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&checkoutdomain.Region{}))
	return conn
}

func TestEnsureDefaultRegion_Idempotent(t *testing.T) {
	conn := newTestDB(t)

	require.NoError(t, EnsureDefaultRegion(conn))
	require.NoError(t, EnsureDefaultRegion(conn))

	var regions []checkoutdomain.Region
	require.NoError(t, conn.Find(&regions).Error)
	require.Len(t, regions, 1)
	assert.Equal(t, defaultRegionName, regions[0].Name)
	assert.Equal(t, defaultRegionCurrency, regions[0].CurrencyCode)
	assert.True(t, regions[0].AutomaticTaxes)
	assert.False(t, regions[0].GiftCardsTaxable)
}

func TestEnsureDefaultRegion_SkipsSeededInstall(t *testing.T) {
	conn := newTestDB(t)

	existing := checkoutdomain.Region{ID: 1, Name: "Europe", CurrencyCode: "eur"}
	require.NoError(t, conn.Create(&existing).Error)

	require.NoError(t, EnsureDefaultRegion(conn))

	var count int64
	require.NoError(t, conn.Model(&checkoutdomain.Region{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEnsureDefaultRegion_NilHandle(t *testing.T) {
	assert.Error(t, EnsureDefaultRegion(nil))
}
