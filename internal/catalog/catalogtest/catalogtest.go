// Package catalogtest wires a catalog service against in-memory sqlite.
package catalogtest

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/vendorhub/internal/catalog/domain"
	"github.com/smallbiznis/vendorhub/internal/catalog/repository"
	"github.com/smallbiznis/vendorhub/internal/catalog/service"
	"github.com/smallbiznis/vendorhub/internal/clock"
	"github.com/smallbiznis/vendorhub/internal/savelock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Fixture struct {
	DB      *gorm.DB
	Clock   *clock.FakeClock
	Repo    domain.Repository
	Service domain.CatalogService
}

func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every pooled connection would otherwise open its own empty database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&domain.Service{}, &domain.PricingPackage{}))
	return db
}

func New(t testing.TB) *Fixture {
	t.Helper()
	return NewWithLocker(t, nil)
}

// NewWithLocker is New with writes serialized through locker.
func NewWithLocker(t testing.TB, locker *savelock.Locker) *Fixture {
	t.Helper()

	db := NewDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	repo := repository.Provide()
	svc := service.New(service.Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Repo:   repo,
		Clock:  fake,
		Locker: locker,
	})

	return &Fixture{DB: db, Clock: fake, Repo: repo, Service: svc}
}
