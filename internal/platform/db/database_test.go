package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLiteMemory(t *testing.T) {
	database, err := Connect("sqlite::memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	assert.Equal(t, "sqlite", database.DB.Dialector.Name())
	var one int
	require.NoError(t, database.DB.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestConnectRequiresDSN(t *testing.T) {
	_, err := Connect("  ", false)
	require.Error(t, err)
}

func TestCloseNil(t *testing.T) {
	var database *Database
	assert.NoError(t, database.Close())
}
