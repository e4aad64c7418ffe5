package main

import (
	"power-saver/internal/cli"
)

func main() {
	cli.Execute()
}
