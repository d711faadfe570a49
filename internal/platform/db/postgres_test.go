package db

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/deliveryhub/pkg/config"
)

func TestOpen_SelectsDialector(t *testing.T) {
	d, err := Open(cfgpkg.DBConfig{Driver: "postgres", DSN: "postgres://localhost/x"})
	require.NoError(t, err)
	require.Equal(t, "postgres", d.Name())

	d, err = Open(cfgpkg.DBConfig{Driver: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)
	require.Equal(t, "sqlite", d.Name())

	_, err = Open(cfgpkg.DBConfig{Driver: "mysql", DSN: "x"})
	require.Error(t, err)

	_, err = Open(cfgpkg.DBConfig{Driver: "sqlite"})
	require.Error(t, err)
}

func TestNewDB_SQLiteAutoMigrate(t *testing.T) {
	cfg := &cfgpkg.Config{Database: cfgpkg.DBConfig{Driver: DriverSQLite, DSN: "file:" + t.Name() + "?mode=memory&cache=shared"}}
	gdb, err := NewDB(zap.NewNop().Sugar(), cfg)
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(zap.NewNop().Sugar(), gdb))
	for _, m := range Models() {
		require.True(t, gdb.Migrator().HasTable(m))
	}
}
