package main

import (
	"os"

	"github.com/hitoshi/adledger/internal/app"
)

func main() {
	os.Exit(app.Execute())
}
