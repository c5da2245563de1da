package main

import (
	"os"

	"github.com/NguyenLeGiangHa/cohort/cmd/cohort/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
