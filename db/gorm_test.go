package db

import (
	"path/filepath"
	"strings"
	"testing"

	"VoiceMorph/config"
	"VoiceMorph/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSqliteAndMigrate(t *testing.T) {
	cfg := &config.Config{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "nested", "test.db")}
	gdb, err := Open(cfg)
	require.NoError(t, err)
	defer Close(gdb)

	require.NoError(t, AutoMigrate(gdb))
	for _, m := range model.AllModels() {
		assert.True(t, gdb.Migrator().HasTable(m))
	}
	assert.True(t, gdb.Migrator().HasTable("audio_likes"))
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(&config.Config{DBDriver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(&config.Config{DBUser: "root", DBPassword: "pw", DBHost: "db", DBPort: "3306", DBName: "voicemorph"})
	assert.True(t, strings.HasPrefix(dsn, "root:pw@tcp(db:3306)/voicemorph?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(&config.Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "5432", DBName: "n"})
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=n sslmode=disable", dsn)
}

func TestCloseNil(t *testing.T) {
	assert.NoError(t, Close(nil))
}
