package packages

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/scribewell/plugin-gateway/pkg/errors"
	"github.com/scribewell/plugin-gateway/pkg/logger"
)

func setupPackagesService(t *testing.T) Service {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:packages_test_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS credit_packages (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  credits INTEGER NOT NULL CHECK (credits > 0),
  price NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'usd',
  active INTEGER NOT NULL DEFAULT 1,
  display_name TEXT NOT NULL,
  description TEXT,
  sort_order INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, conn.Exec(ddl).Error)

	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(conn),
		Logger: logger.New(logger.Options{ServiceName: "test"}),
	})
	require.NoError(t, err)
	return svc
}

func TestSeedDefaultsPopulatesCatalogOnce(t *testing.T) {
	svc := setupPackagesService(t)
	ctx := context.Background()

	require.NoError(t, svc.SeedDefaults(ctx))
	first, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	// Operator edits survive a re-seed.
	edited, err := svc.Save(ctx, SaveInput{
		ID:          "article_starter",
		Kind:        "article",
		Credits:     12,
		Price:       "10.50",
		DisplayName: "Article Starter XL",
	})
	require.NoError(t, err)

	require.NoError(t, svc.SeedDefaults(ctx))
	got, err := svc.Get(ctx, "article_starter")
	require.NoError(t, err)
	assert.EqualValues(t, 12, got.Credits)
	assert.Equal(t, edited.DisplayName, got.DisplayName)
	assert.True(t, got.Price.Equal(decimal.NewFromFloat(10.50)))
}

func TestSaveValidatesInput(t *testing.T) {
	svc := setupPackagesService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input SaveInput
	}{
		{"bad kind", SaveInput{ID: "p1", Kind: "video", Credits: 5, Price: "1.00", DisplayName: "P"}},
		{"zero credits", SaveInput{ID: "p2", Kind: "article", Credits: 0, Price: "1.00", DisplayName: "P"}},
		{"bad price", SaveInput{ID: "p3", Kind: "article", Credits: 5, Price: "free", DisplayName: "P"}},
		{"negative price", SaveInput{ID: "p4", Kind: "article", Credits: 5, Price: "-2.00", DisplayName: "P"}},
		{"bad currency", SaveInput{ID: "p5", Kind: "article", Credits: 5, Price: "1.00", Currency: "btc", DisplayName: "P"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Save(ctx, tc.input)
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
		})
	}
}

func TestDeactivateHidesFromStorefront(t *testing.T) {
	svc := setupPackagesService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, SaveInput{
		ID: "temp_pack", Kind: "image", Credits: 5, Price: "3.00", DisplayName: "Temp",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, "temp_pack"))

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	for _, pkg := range active {
		assert.NotEqual(t, "temp_pack", pkg.ID)
	}

	// Still resolvable by id for history.
	got, err := svc.Get(ctx, "temp_pack")
	require.NoError(t, err)
	assert.False(t, got.Active)

	err = svc.Deactivate(ctx, "never_existed")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestGetUnknownPackage(t *testing.T) {
	svc := setupPackagesService(t)

	_, err := svc.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestListActiveOrdersBySortOrder(t *testing.T) {
	svc := setupPackagesService(t)
	ctx := context.Background()

	for _, p := range []SaveInput{
		{ID: "z_last", Kind: "article", Credits: 1, Price: "1.00", DisplayName: "Z", SortOrder: 30},
		{ID: "a_first", Kind: "article", Credits: 1, Price: "1.00", DisplayName: "A", SortOrder: 10},
		{ID: "m_middle", Kind: "article", Credits: 1, Price: "1.00", DisplayName: "M", SortOrder: 20},
	} {
		_, err := svc.Save(ctx, p)
		require.NoError(t, err)
	}

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "a_first", active[0].ID)
	assert.Equal(t, "m_middle", active[1].ID)
	assert.Equal(t, "z_last", active[2].ID)
}
