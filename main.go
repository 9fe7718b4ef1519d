package main

import (
	"mcpbox/cmd"
)

func main() {
	// Execute the root command.
	cmd.Execute()
}
