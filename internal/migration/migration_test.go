package migration

import (
	"errors"
	"io/fs"
	"os"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/vendorhub/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	source, err := Source()
	require.NoError(t, err)
	defer source.Close()

	version, err := source.First()
	require.NoError(t, err)

	count := 0
	for {
		count++
		up, _, err := source.ReadUp(version)
		require.NoError(t, err)
		up.Close()
		down, _, err := source.ReadDown(version)
		require.NoError(t, err)
		down.Close()

		next, err := source.Next(version)
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
			break
		}
		require.NoError(t, err)
		version = next
	}
	assert.Equal(t, 2, count)
}

func TestRunAutoMigratesSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Run(conn, config.Config{DBType: "sqlite"}, zap.NewNop()))
	assert.True(t, conn.Migrator().HasTable("services"))
	assert.True(t, conn.Migrator().HasTable("pricing_packages"))
}

func TestRunMigrationsRequiresHandle(t *testing.T) {
	assert.Error(t, RunMigrations(nil))
}
