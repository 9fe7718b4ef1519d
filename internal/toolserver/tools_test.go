package toolserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "sample.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	require.NoError(t, store.Bootstrap())
	return store
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultJSON decodes the single text content block of a tool result.
func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()

	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &out))
	return out
}

func TestStore_Bootstrap_Idempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	// A second bootstrap must not duplicate the seed rows.
	require.NoError(t, store.Bootstrap())

	rows, err := store.queryRows("SELECT COUNT(*) AS n FROM users")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.EqualValues(t, 5, rows[0]["n"])
}

func TestTools_ExecuteSQLQuery(t *testing.T) {
	t.Parallel()

	tools := NewTools(newTestStore(t))

	t.Run("select returns rows", func(t *testing.T) {
		t.Parallel()

		result, err := tools.ExecuteSQLQuery(context.Background(), callRequest(map[string]any{
			"query": "SELECT name, age FROM users ORDER BY name",
		}))
		require.NoError(t, err)
		require.False(t, result.IsError)

		payload := resultJSON(t, result)
		require.Equal(t, true, payload["success"])
		require.EqualValues(t, 5, payload["row_count"])

		data := payload["data"].([]any)
		first := data[0].(map[string]any)
		require.Equal(t, "Alice Johnson", first["name"])
	})

	t.Run("select with positional parameters", func(t *testing.T) {
		t.Parallel()

		result, err := tools.ExecuteSQLQuery(context.Background(), callRequest(map[string]any{
			"query":      "SELECT name FROM users WHERE age > ? ORDER BY name",
			"parameters": []any{float64(30)},
		}))
		require.NoError(t, err)

		payload := resultJSON(t, result)
		require.Equal(t, true, payload["success"])
		require.EqualValues(t, 3, payload["row_count"])
	})

	t.Run("pragma returns rows", func(t *testing.T) {
		t.Parallel()

		result, err := tools.ExecuteSQLQuery(context.Background(), callRequest(map[string]any{
			"query": "PRAGMA table_info(users)",
		}))
		require.NoError(t, err)

		payload := resultJSON(t, result)
		require.Equal(t, true, payload["success"])
		require.EqualValues(t, 5, payload["row_count"]) // id, name, email, age, created_at
	})

	t.Run("write reports rows affected", func(t *testing.T) {
		result, err := tools.ExecuteSQLQuery(context.Background(), callRequest(map[string]any{
			"query":      "UPDATE users SET age = age + 1 WHERE name = ?",
			"parameters": []any{"Bob Smith"},
		}))
		require.NoError(t, err)

		payload := resultJSON(t, result)
		require.Equal(t, true, payload["success"])
		require.EqualValues(t, 1, payload["rows_affected"])
	})

	t.Run("sql error is a tool-level failure", func(t *testing.T) {
		t.Parallel()

		result, err := tools.ExecuteSQLQuery(context.Background(), callRequest(map[string]any{
			"query": "SELECT * FROM no_such_table",
		}))
		require.NoError(t, err)
		require.False(t, result.IsError) // in-band failure, not a protocol error

		payload := resultJSON(t, result)
		require.Equal(t, false, payload["success"])
		require.Contains(t, payload["error"], "SQLite error")
	})

	t.Run("missing query is a protocol error", func(t *testing.T) {
		t.Parallel()

		result, err := tools.ExecuteSQLQuery(context.Background(), callRequest(map[string]any{}))
		require.NoError(t, err)
		require.True(t, result.IsError)
	})
}

func TestTools_GetDatabaseSchema(t *testing.T) {
	t.Parallel()

	tools := NewTools(newTestStore(t))

	result, err := tools.GetDatabaseSchema(context.Background(), callRequest(nil))
	require.NoError(t, err)

	payload := resultJSON(t, result)
	require.Equal(t, true, payload["success"])
	require.EqualValues(t, 1, payload["table_count"])

	tables := payload["tables"].([]any)
	users := tables[0].(map[string]any)
	require.Equal(t, "users", users["name"])
	require.Contains(t, users["sql"], "CREATE TABLE")
	require.Len(t, users["columns"].([]any), 5)
}

func TestTools_GetTableInfo(t *testing.T) {
	t.Parallel()

	tools := NewTools(newTestStore(t))

	t.Run("existing table", func(t *testing.T) {
		t.Parallel()

		result, err := tools.GetTableInfo(context.Background(), callRequest(map[string]any{
			"table_name": "users",
		}))
		require.NoError(t, err)

		payload := resultJSON(t, result)
		require.Equal(t, true, payload["success"])
		require.EqualValues(t, 5, payload["row_count"])
		require.EqualValues(t, 5, payload["column_count"])
	})

	t.Run("missing table", func(t *testing.T) {
		t.Parallel()

		result, err := tools.GetTableInfo(context.Background(), callRequest(map[string]any{
			"table_name": "ghosts",
		}))
		require.NoError(t, err)

		payload := resultJSON(t, result)
		require.Equal(t, false, payload["success"])
		require.Contains(t, payload["error"], "does not exist")
	})
}

func TestTools_InsertUser(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    map[string]any
		wantOK  bool
		wantErr string
	}{
		{
			name:   "valid user",
			args:   map[string]any{"name": "Frank Green", "email": "frank@example.com", "age": float64(52)},
			wantOK: true,
		},
		{
			name:    "blank name",
			args:    map[string]any{"name": "   ", "email": "blank@example.com", "age": float64(30)},
			wantErr: "name cannot be empty",
		},
		{
			name:    "email without at sign",
			args:    map[string]any{"name": "No At", "email": "nope.example.com", "age": float64(30)},
			wantErr: "invalid email address",
		},
		{
			name:    "age out of range",
			args:    map[string]any{"name": "Old Timer", "email": "old@example.com", "age": float64(200)},
			wantErr: "age must be between 1 and 150",
		},
		{
			name:    "duplicate email",
			args:    map[string]any{"name": "Alice Clone", "email": "alice@example.com", "age": float64(28)},
			wantErr: "already registered",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tools := NewTools(newTestStore(t))
			result, err := tools.InsertUser(context.Background(), callRequest(tc.args))
			require.NoError(t, err)

			payload := resultJSON(t, result)
			if tc.wantOK {
				require.Equal(t, true, payload["success"])
				user := payload["user"].(map[string]any)
				require.Equal(t, tc.args["name"], user["name"])
				require.Positive(t, payload["user_id"])
			} else {
				require.Equal(t, false, payload["success"])
				require.Contains(t, payload["error"], tc.wantErr)
			}
		})
	}
}

func TestTools_SearchUsers(t *testing.T) {
	t.Parallel()

	tools := NewTools(newTestStore(t))

	t.Run("no criteria returns everyone", func(t *testing.T) {
		t.Parallel()

		result, err := tools.SearchUsers(context.Background(), callRequest(map[string]any{}))
		require.NoError(t, err)

		payload := resultJSON(t, result)
		require.Equal(t, true, payload["success"])
		require.EqualValues(t, 5, payload["count"])
	})

	t.Run("substring matches name and email", func(t *testing.T) {
		t.Parallel()

		result, err := tools.SearchUsers(context.Background(), callRequest(map[string]any{
			"search_term": "alice",
		}))
		require.NoError(t, err)

		payload := resultJSON(t, result)
		require.EqualValues(t, 1, payload["count"])
		users := payload["users"].([]any)
		require.Equal(t, "Alice Johnson", users[0].(map[string]any)["name"])
	})

	t.Run("age range", func(t *testing.T) {
		t.Parallel()

		result, err := tools.SearchUsers(context.Background(), callRequest(map[string]any{
			"min_age": float64(28),
			"max_age": float64(34),
		}))
		require.NoError(t, err)

		payload := resultJSON(t, result)
		require.EqualValues(t, 3, payload["count"]) // Alice 28, Bob 34, Eva 31
	})

	t.Run("limit clamps results", func(t *testing.T) {
		t.Parallel()

		result, err := tools.SearchUsers(context.Background(), callRequest(map[string]any{
			"limit": float64(2),
		}))
		require.NoError(t, err)

		payload := resultJSON(t, result)
		require.EqualValues(t, 2, payload["count"])
	})

	t.Run("no matches", func(t *testing.T) {
		t.Parallel()

		result, err := tools.SearchUsers(context.Background(), callRequest(map[string]any{
			"search_term": "zebra",
		}))
		require.NoError(t, err)

		payload := resultJSON(t, result)
		require.Equal(t, true, payload["success"])
		require.EqualValues(t, 0, payload["count"])
	})
}

func TestBuildServer_RegistersAllTools(t *testing.T) {
	t.Parallel()

	srv := BuildServer(newTestStore(t))
	require.NotNil(t, srv)
}
