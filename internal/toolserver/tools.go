package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const maxSearchLimit = 100

// Tools holds the handlers for the five database tools. Tool-level failures
// are reported in-band as structured {"success": false, ...} results so the
// caller can distinguish them from transport failures; only malformed
// requests produce protocol-level errors.
type Tools struct {
	store *Store
}

func NewTools(store *Store) *Tools {
	return &Tools{store: store}
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

func failure(format string, args ...any) *mcp.CallToolResult {
	return jsonResult(map[string]any{
		"success": false,
		"error":   fmt.Sprintf(format, args...),
	})
}

// ExecuteSQLQuery runs an arbitrary SQL statement with optional positional
// parameters. SELECT and PRAGMA statements return rows; everything else
// returns the affected row count.
func (t *Tools) ExecuteSQLQuery(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("missing 'query' parameter: %v", err)), nil
	}

	var params []any
	if raw, ok := request.GetArguments()["parameters"]; ok {
		items, ok := raw.([]any)
		if !ok {
			return mcp.NewToolResultError("'parameters' must be an array"), nil
		}
		params = items
	}

	upper := strings.ToUpper(strings.TrimSpace(query))
	if strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "PRAGMA") {
		rows, err := t.store.queryRows(query, params...)
		if err != nil {
			return failure("SQLite error: %v", err), nil
		}
		return jsonResult(map[string]any{
			"success":    true,
			"data":       rows,
			"row_count":  len(rows),
			"query":      query,
			"parameters": params,
		}), nil
	}

	res, err := t.store.db.Exec(query, params...)
	if err != nil {
		return failure("SQLite error: %v", err), nil
	}
	affected, _ := res.RowsAffected()
	return jsonResult(map[string]any{
		"success":       true,
		"rows_affected": affected,
		"message":       "Query executed successfully",
		"query":         query,
		"parameters":    params,
	}), nil
}

// GetDatabaseSchema returns every user table with its creation SQL and
// column definitions.
func (t *Tools) GetDatabaseSchema(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tables, err := t.store.queryRows(`
		SELECT name, sql
		FROM sqlite_master
		WHERE type='table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return failure("error getting schema: %v", err), nil
	}

	out := make([]map[string]any, 0, len(tables))
	for _, table := range tables {
		name, _ := table["name"].(string)
		columns, err := t.store.queryRows("PRAGMA table_info(" + quoteIdent(name) + ")")
		if err != nil {
			return failure("error getting schema: %v", err), nil
		}
		out = append(out, map[string]any{
			"name":    name,
			"sql":     table["sql"],
			"columns": columns,
		})
	}

	return jsonResult(map[string]any{
		"success":       true,
		"database_path": t.store.Path(),
		"table_count":   len(out),
		"tables":        out,
	}), nil
}

// GetTableInfo returns column definitions and row count for one table.
func (t *Tools) GetTableInfo(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tableName, err := request.RequireString("table_name")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("missing 'table_name' parameter: %v", err)), nil
	}

	exists, err := t.store.tableExists(tableName)
	if err != nil {
		return failure("error getting table info: %v", err), nil
	}
	if !exists {
		return failure("table '%s' does not exist", tableName), nil
	}

	columns, err := t.store.queryRows("PRAGMA table_info(" + quoteIdent(tableName) + ")")
	if err != nil {
		return failure("error getting table info: %v", err), nil
	}

	var rowCount int
	if err := t.store.db.QueryRow("SELECT COUNT(*) FROM " + quoteIdent(tableName)).Scan(&rowCount); err != nil {
		return failure("error getting table info: %v", err), nil
	}

	return jsonResult(map[string]any{
		"success":      true,
		"table_name":   tableName,
		"columns":      columns,
		"column_count": len(columns),
		"row_count":    rowCount,
	}), nil
}

// InsertUser adds one user after validating name, email and age.
func (t *Tools) InsertUser(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("missing 'name' parameter: %v", err)), nil
	}
	email, err := request.RequireString("email")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("missing 'email' parameter: %v", err)), nil
	}
	age := request.GetInt("age", 0)

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" {
		return failure("name cannot be empty"), nil
	}
	if email == "" || !strings.Contains(email, "@") {
		return failure("invalid email address"), nil
	}
	if age <= 0 || age > 150 {
		return failure("age must be between 1 and 150"), nil
	}

	res, err := t.store.db.Exec(
		"INSERT INTO users (name, email, age) VALUES (?, ?, ?)", name, email, age,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return failure("email '%s' is already registered", email), nil
		}
		return failure("database error: %v", err), nil
	}

	userID, _ := res.LastInsertId()
	return jsonResult(map[string]any{
		"success": true,
		"message": "User created successfully",
		"user_id": userID,
		"user": map[string]any{
			"id":    userID,
			"name":  name,
			"email": email,
			"age":   age,
		},
	}), nil
}

// SearchUsers finds users matching an optional name/email substring and age
// range, capped at maxSearchLimit rows.
func (t *Tools) SearchUsers(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	searchTerm := request.GetString("search_term", "")
	limit := request.GetInt("limit", 10)
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	if limit < 1 {
		limit = 1
	}

	var conditions []string
	var params []any

	if searchTerm != "" {
		conditions = append(conditions, "(name LIKE ? OR email LIKE ?)")
		pattern := "%" + searchTerm + "%"
		params = append(params, pattern, pattern)
	}

	criteria := map[string]any{
		"search_term": searchTerm,
		"limit":       limit,
	}

	if _, ok := args["min_age"]; ok {
		minAge := request.GetInt("min_age", 0)
		conditions = append(conditions, "age >= ?")
		params = append(params, minAge)
		criteria["min_age"] = minAge
	}
	if _, ok := args["max_age"]; ok {
		maxAge := request.GetInt("max_age", 0)
		conditions = append(conditions, "age <= ?")
		params = append(params, maxAge)
		criteria["max_age"] = maxAge
	}

	query := "SELECT * FROM users"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name LIMIT ?"
	params = append(params, limit)

	users, err := t.store.queryRows(query, params...)
	if err != nil {
		return failure("search error: %v", err), nil
	}

	return jsonResult(map[string]any{
		"success":         true,
		"users":           users,
		"count":           len(users),
		"search_criteria": criteria,
	}), nil
}
