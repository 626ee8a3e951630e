package main

import (
	"os"

	"github.com/samvad-hq/campaign-desk/internal/logger"
)

func main() {
	code := execute(newRootCmd(os.Stdout, os.Stderr))
	_ = logger.Close()
	os.Exit(code)
}
