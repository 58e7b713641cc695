// /* cmd/tunfence-cli/tunfence-cli.go
/*
tunfence command line interface
*/
package main

import (
	"github.com/tunfence/tunfence/cmd/tunfence-cli/commands"
)

func main() {
	commands.Execute()
}
