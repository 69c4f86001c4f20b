package main

import (
	"github.com/logward/logward/cmd/logward/commands"
)

func main() {
	commands.Execute()
}
