// connector/postgres_test.go
package connector

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
)

const employeeQuery = "SELECT department, level, manager_id FROM employees WHERE id = $1"

func newMockSQL(t *testing.T, settings map[string]any) (*SQLConnector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newSQLConnector(Config{ConnectionID: "hr-1", Settings: settings}, db), mock
}

func TestSQLConnectorFetch(t *testing.T) {
	t.Run("FirstRow", func(t *testing.T) {
		c, mock := newMockSQL(t, map[string]any{"query": employeeQuery})
		mock.ExpectQuery(regexp.QuoteMeta(employeeQuery)).
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"department", "level", "manager_id"}).
				AddRow([]byte("eng"), int64(3), nil))

		raw, err := c.Fetch(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, "eng", raw["department"])
		assert.Equal(t, int64(3), raw["level"])
		assert.Contains(t, raw, "manager_id")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NoRows", func(t *testing.T) {
		c, mock := newMockSQL(t, map[string]any{"query": employeeQuery})
		mock.ExpectQuery(regexp.QuoteMeta(employeeQuery)).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"department"}))

		raw, err := c.Fetch(context.Background(), "ghost")
		require.NoError(t, err)
		assert.Empty(t, raw)
	})

	t.Run("AuthFailure", func(t *testing.T) {
		c, mock := newMockSQL(t, map[string]any{"query": employeeQuery})
		mock.ExpectQuery(regexp.QuoteMeta(employeeQuery)).
			WillReturnError(&pq.Error{Code: "28P01", Message: "password authentication failed"})

		_, err := c.Fetch(context.Background(), "alice")
		assert.True(t, pip_errors.IsAuth(err))
	})

	t.Run("UndefinedTableIsPermanent", func(t *testing.T) {
		c, mock := newMockSQL(t, map[string]any{"query": employeeQuery})
		mock.ExpectQuery(regexp.QuoteMeta(employeeQuery)).
			WillReturnError(&pq.Error{Code: "42P01", Message: "relation does not exist"})

		_, err := c.Fetch(context.Background(), "alice")
		assert.True(t, pip_errors.IsPermanent(err))
	})

	t.Run("ConnectionFailureIsTransient", func(t *testing.T) {
		c, mock := newMockSQL(t, map[string]any{"query": employeeQuery})
		mock.ExpectQuery(regexp.QuoteMeta(employeeQuery)).
			WillReturnError(&pq.Error{Code: "08006", Message: "connection failure"})

		_, err := c.Fetch(context.Background(), "alice")
		assert.True(t, pip_errors.IsTransient(err))
	})
}

func TestSQLConnectorTestConnection(t *testing.T) {
	c, mock := newMockSQL(t, map[string]any{"query": employeeQuery, "table": "employees"})
	mock.ExpectPing()
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
		WithArgs("employees").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"}).
			AddRow("department", "text", "NO").
			AddRow("level", "integer", "YES").
			AddRow("hired_at", "timestamp with time zone", "YES"))

	res, err := c.TestConnection(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Fields, 3)
	assert.Equal(t, "string", res.Fields[0].Type)
	assert.True(t, *res.Fields[0].Required)
	assert.Equal(t, "number", res.Fields[1].Type)
	assert.Equal(t, "datetime", res.Fields[2].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDSN(t *testing.T) {
	dsn, err := postgresDSN(Config{
		Endpoint:    "postgres://db.internal:5432/hr?sslmode=disable",
		Credentials: map[string]string{"username": "pip", "password": "pw"},
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres://pip:pw@db.internal:5432/hr?sslmode=disable", dsn)

	_, err = NewPostgresConnector(Config{Endpoint: "postgres://x/y"})
	assert.True(t, pip_errors.IsPermanent(err), "query is required")
}
