// Command codemode-gw runs the Codemode Gateway: a TypeScript
// code-execution MCP gateway that fronts a set of upstream MCP servers.
package main

import "github.com/codemode-gw/codemode/cmd/codemode-gw/cmd"

func main() {
	cmd.Execute()
}
