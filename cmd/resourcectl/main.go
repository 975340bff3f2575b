package main

import (
	"os"

	"github.com/jerkytreats/cdnhealth/internal/logging"
)

func main() {
	err := Execute()
	logging.Sync()
	if err != nil {
		logging.Error("%v", err)
		os.Exit(1)
	}
}
