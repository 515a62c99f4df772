package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/vendorhub/internal/catalog/catalogtest"
	"github.com/smallbiznis/vendorhub/internal/catalog/domain"
	"github.com/smallbiznis/vendorhub/internal/savelock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestCreateAssignsSlugAndVersion(t *testing.T) {
	fx := catalogtest.New(t)
	ctx := context.Background()

	first, err := fx.Service.Create(ctx, domain.CreateRequest{Title: "Aerial Photography", RetailPrice: "$250"})
	require.NoError(t, err)
	assert.Equal(t, "aerial-photography", first.Slug)
	assert.Equal(t, int64(1), first.Version)
	assert.Equal(t, domain.PricingModeAuto, first.PricingMode)

	second, err := fx.Service.Create(ctx, domain.CreateRequest{Title: "Aerial  Photography"})
	require.NoError(t, err)
	assert.Equal(t, "aerial-photography-2", second.Slug)

	_, err = fx.Service.Create(ctx, domain.CreateRequest{Title: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidTitle)

	_, err = fx.Service.Create(ctx, domain.CreateRequest{Title: "Staging", PricingMode: "bespoke"})
	assert.ErrorIs(t, err, domain.ErrInvalidPricingMode)
}

func TestWriteIncrementsVersion(t *testing.T) {
	fx := catalogtest.New(t)
	ctx := context.Background()

	created, err := fx.Service.Create(ctx, domain.CreateRequest{Title: "Listing Video", RetailPrice: "$100"})
	require.NoError(t, err)

	res, err := fx.Service.Write(ctx, domain.WriteRequest{
		ID:              created.ID,
		Patch:           map[string]any{"title": "Listing Video Pro", "pro_price": "$80", "description": ""},
		ExpectedVersion: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WriteStatusWritten, res.Status)
	assert.Equal(t, int64(2), res.Version)

	got, err := fx.Service.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Listing Video Pro", got.Title)
	assert.Equal(t, int64(2), got.Version)
	require.NotNil(t, got.ProPrice)
	assert.Equal(t, "$80", *got.ProPrice)
	assert.Nil(t, got.Description)
	assert.Equal(t, "listing-video", got.Slug)
}

func TestWriteReportsConflict(t *testing.T) {
	fx := catalogtest.New(t)
	ctx := context.Background()

	created, err := fx.Service.Create(ctx, domain.CreateRequest{Title: "Floor Plans"})
	require.NoError(t, err)

	_, err = fx.Service.Write(ctx, domain.WriteRequest{ID: created.ID, Patch: map[string]any{"retail_price": "$75"}, ExpectedVersion: 1})
	require.NoError(t, err)

	res, err := fx.Service.Write(ctx, domain.WriteRequest{ID: created.ID, Patch: map[string]any{"retail_price": "$90"}, ExpectedVersion: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.WriteStatusConflict, res.Status)
	assert.Equal(t, int64(2), res.CurrentVersion)

	got, err := fx.Service.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "$75", got.RetailPrice)
}

func TestWriteValidation(t *testing.T) {
	fx := catalogtest.New(t)
	ctx := context.Background()

	created, err := fx.Service.Create(ctx, domain.CreateRequest{Title: "Virtual Tours"})
	require.NoError(t, err)

	cases := []struct {
		name string
		req  domain.WriteRequest
		want error
	}{
		{"bad id", domain.WriteRequest{ID: "abc", Patch: map[string]any{"title": "x"}, ExpectedVersion: 1}, domain.ErrInvalidID},
		{"zero version", domain.WriteRequest{ID: created.ID, Patch: map[string]any{"title": "x"}, ExpectedVersion: 0}, domain.ErrInvalidVersion},
		{"empty patch", domain.WriteRequest{ID: created.ID, Patch: map[string]any{}, ExpectedVersion: 1}, domain.ErrInvalidPatch},
		{"unknown key", domain.WriteRequest{ID: created.ID, Patch: map[string]any{"version": 9}, ExpectedVersion: 1}, domain.ErrInvalidPatch},
		{"empty title", domain.WriteRequest{ID: created.ID, Patch: map[string]any{"title": " "}, ExpectedVersion: 1}, domain.ErrInvalidTitle},
		{"bad mode", domain.WriteRequest{ID: created.ID, Patch: map[string]any{"pricing_mode": "free"}, ExpectedVersion: 1}, domain.ErrInvalidPricingMode},
		{"foreign package", domain.WriteRequest{ID: created.ID, Patch: map[string]any{"default_package_id": "12345"}, ExpectedVersion: 1}, domain.ErrInvalidPackage},
		{"missing service", domain.WriteRequest{ID: "42", Patch: map[string]any{"title": "x"}, ExpectedVersion: 1}, domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.Service.Write(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPackagesLifecycle(t *testing.T) {
	fx := catalogtest.New(t)
	ctx := context.Background()

	created, err := fx.Service.Create(ctx, domain.CreateRequest{Title: "Photo Bundle", RetailPrice: "$300"})
	require.NoError(t, err)

	basic, err := fx.Service.CreatePackage(ctx, domain.CreatePackageRequest{
		ServiceID:   created.ID,
		Label:       "Basic",
		RetailPrice: ptr(150.0),
		SortOrder:   2,
		Features: []domain.FeatureInput{
			domain.TextFeature("25 photos"),
			domain.ObjectFeature(domain.FeatureObject{Name: "Twilight", Enabled: ptr(false)}),
			domain.TextFeature("  "),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.Feature{{Text: "25 photos", Included: true}, {Text: "Twilight", Included: false}}, basic.Features)

	premium, err := fx.Service.CreatePackage(ctx, domain.CreatePackageRequest{ServiceID: created.ID, Label: "Premium", SortOrder: 1})
	require.NoError(t, err)

	items, err := fx.Service.ListPackages(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Premium", items[0].Label)
	assert.Equal(t, "Basic", items[1].Label)

	res, err := fx.Service.Write(ctx, domain.WriteRequest{ID: created.ID, Patch: map[string]any{"default_package_id": basic.ID}, ExpectedVersion: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Version)

	got, err := fx.Service.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DefaultPackageID)
	assert.Equal(t, basic.ID, *got.DefaultPackageID)

	require.NoError(t, fx.Service.DeletePackage(ctx, created.ID, basic.ID))
	assert.ErrorIs(t, fx.Service.DeletePackage(ctx, created.ID, basic.ID), domain.ErrPackageNotFound)

	got, err = fx.Service.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DefaultPackageID)
	assert.Equal(t, int64(3), got.Version)
	require.Len(t, got.Packages, 1)
	assert.Equal(t, premium.ID, got.Packages[0].ID)

	_, err = fx.Service.CreatePackage(ctx, domain.CreatePackageRequest{ServiceID: created.ID, Label: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidLabel)
	_, err = fx.Service.CreatePackage(ctx, domain.CreatePackageRequest{ServiceID: created.ID, Label: "Neg", RetailPrice: ptr(-1.0)})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestListFiltersByModeAndTitle(t *testing.T) {
	fx := catalogtest.New(t)
	ctx := context.Background()

	_, err := fx.Service.Create(ctx, domain.CreateRequest{Title: "Drone Video", PricingMode: "fixed"})
	require.NoError(t, err)
	_, err = fx.Service.Create(ctx, domain.CreateRequest{Title: "Home Staging", PricingMode: "custom_quote"})
	require.NoError(t, err)

	items, err := fx.Service.List(ctx, domain.ListRequest{PricingMode: "fixed"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Drone Video", items[0].Title)

	items, err = fx.Service.List(ctx, domain.ListRequest{Title: "stag"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Home Staging", items[0].Title)

	_, err = fx.Service.List(ctx, domain.ListRequest{PricingMode: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidPricingMode)

	got, err := fx.Service.GetBySlug(ctx, "home-staging")
	require.NoError(t, err)
	assert.Equal(t, "Home Staging", got.Title)
}

func TestFindReturnsModelWithPackages(t *testing.T) {
	fx := catalogtest.New(t)
	ctx := context.Background()

	created, err := fx.Service.Create(ctx, domain.CreateRequest{Title: "Twilight Shoot", RetailPrice: "$180"})
	require.NoError(t, err)
	_, err = fx.Service.CreatePackage(ctx, domain.CreatePackageRequest{ServiceID: created.ID, Label: "Single", RetailPrice: ptr(90.0)})
	require.NoError(t, err)

	svc, err := fx.Service.Find(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "$180", svc.RetailPrice)
	require.Len(t, svc.Packages, 1)
	require.NotNil(t, svc.Packages[0].RetailPrice)
	assert.Equal(t, 90.0, *svc.Packages[0].RetailPrice)

	_, err = fx.Service.Find(ctx, "999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWriteReportsBusyWhileEntityLocked(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := savelock.NewLocker(client, time.Minute)

	fx := catalogtest.NewWithLocker(t, locker)
	ctx := context.Background()

	created, err := fx.Service.Create(ctx, domain.CreateRequest{Title: "Floor Plans", RetailPrice: "$90"})
	require.NoError(t, err)

	key := savelock.EntityKey("service", created.ID)
	token, ok, err := locker.TryLock(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = fx.Service.Write(ctx, domain.WriteRequest{
		ID:              created.ID,
		Patch:           map[string]any{"retail_price": "$95"},
		ExpectedVersion: 1,
	})
	assert.ErrorIs(t, err, domain.ErrBusy)

	require.NoError(t, locker.Release(ctx, key, token))
	res, err := fx.Service.Write(ctx, domain.WriteRequest{
		ID:              created.ID,
		Patch:           map[string]any{"retail_price": "$95"},
		ExpectedVersion: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Version)
	assert.False(t, mr.Exists(key))
}
