package main

import (
	"os"

	"coldsnap/core/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
