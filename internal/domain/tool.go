package domain

import "encoding/json"

// ToolDescriptor describes a tool advertised by an MCP server, as cached at
// discovery time. Read-only after discovery; the session manager uses it to
// route a requested tool name to the owning connection.
type ToolDescriptor struct {
	// Name is the tool name, unique across all enabled servers.
	Name string `json:"name"`

	// Server is the name of the MCP server that advertises the tool.
	Server string `json:"server"`

	// Description is the human/model readable tool description.
	Description string `json:"description,omitempty"`

	// InputSchema is the JSON Schema for the tool's arguments, verbatim as
	// advertised by the server.
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}
