package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	queries []string
	failOn  string
}

func (c *recordingConn) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	c.queries = append(c.queries, query)
	if c.failOn != "" && strings.Contains(query, c.failOn) {
		return nil, errors.New("permission denied")
	}
	return driver.RowsAffected(0), nil
}

func TestMigrateSchemaHoldsLockAroundDDL(t *testing.T) {
	conn := &recordingConn{}
	require.NoError(t, migrateSchema(context.Background(), conn))

	require.Len(t, conn.queries, len(schemaStatements)+2)
	assert.Equal(t, `SELECT pg_advisory_lock($1)`, conn.queries[0])
	assert.Equal(t, schemaStatements, conn.queries[1:len(conn.queries)-1])
	assert.Equal(t, `SELECT pg_advisory_unlock($1)`, conn.queries[len(conn.queries)-1])
}

func TestMigrateSchemaUnlocksOnFailure(t *testing.T) {
	conn := &recordingConn{failOn: "CREATE TABLE IF NOT EXISTS key_value_index"}
	err := migrateSchema(context.Background(), conn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate schema")
	assert.Equal(t, `SELECT pg_advisory_unlock($1)`, conn.queries[len(conn.queries)-1])
}

func TestMigrateSchemaLockFailure(t *testing.T) {
	conn := &recordingConn{failOn: "pg_advisory_lock"}
	err := migrateSchema(context.Background(), conn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquire migration lock")
	assert.Len(t, conn.queries, 1, "no DDL and no unlock without the lock")
}
