package main

import (
	"os"

	"github.com/dshills/diffsum/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
