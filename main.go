package main

import (
	"os"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
