package main

import (
	"skyreach/internal/cmd"
)

func main() {
	cmd.Run()
}
