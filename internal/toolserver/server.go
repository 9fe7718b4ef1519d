package toolserver

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// BuildServer assembles the MCP server with the five database tools
// registered. Serving is left to the caller so tests can exercise the
// handlers directly.
func BuildServer(store *Store) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"SQLite Database Server",
		"0.1.0",
		server.WithToolCapabilities(true),
	)

	tools := NewTools(store)

	mcpServer.AddTool(mcp.NewTool("execute_sql_query",
		mcp.WithDescription("Run a SQL query against the sample database, with optional positional parameters"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("SQL statement to execute"),
		),
		mcp.WithArray("parameters",
			mcp.Description("Positional parameters bound to '?' placeholders"),
		),
	), tools.ExecuteSQLQuery)

	mcpServer.AddTool(mcp.NewTool("get_database_schema",
		mcp.WithDescription("Get the database structure: tables, creation SQL and columns"),
	), tools.GetDatabaseSchema)

	mcpServer.AddTool(mcp.NewTool("get_table_info",
		mcp.WithDescription("Analyze a specific table: columns and row count"),
		mcp.WithString("table_name",
			mcp.Required(),
			mcp.Description("Name of the table to inspect"),
		),
	), tools.GetTableInfo)

	mcpServer.AddTool(mcp.NewTool("insert_user",
		mcp.WithDescription("Add a new user safely, with validation"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Full name of the user"),
		),
		mcp.WithString("email",
			mcp.Required(),
			mcp.Description("Unique email address"),
		),
		mcp.WithNumber("age",
			mcp.Required(),
			mcp.Description("Age in years (1-150)"),
		),
	), tools.InsertUser)

	mcpServer.AddTool(mcp.NewTool("search_users",
		mcp.WithDescription("Find users by name/email substring and age range"),
		mcp.WithString("search_term",
			mcp.Description("Substring matched against name and email"),
		),
		mcp.WithNumber("min_age",
			mcp.Description("Minimum age, inclusive"),
		),
		mcp.WithNumber("max_age",
			mcp.Description("Maximum age, inclusive"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of rows to return (default 10, max 100)"),
		),
	), tools.SearchUsers)

	return mcpServer
}

// Serve bootstraps the store and serves MCP over stdio until the client
// disconnects. stdout is owned by the JSON-RPC transport; anything
// human-readable must go to stderr or the log file.
func Serve(store *Store) error {
	if err := store.Bootstrap(); err != nil {
		return err
	}
	return server.ServeStdio(BuildServer(store))
}
