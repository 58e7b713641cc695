// /* cmd/tunfence/tunfence.go
/*
tunfence daemon
*/
package main

import (
	"github.com/tunfence/tunfence/cmd/tunfence/commands"
)

func main() {
	commands.Execute()
}
