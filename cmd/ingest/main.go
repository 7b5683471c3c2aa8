// Package main is the entry point for the Cortex-X Ingest Service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	ingest "github.com/kart-io/cortex-x/internal/ingest"
)

func main() {
	ingest.NewApp().Run()
}
