// Package main is the entry point for the Cortex-X Query Service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	query "github.com/kart-io/cortex-x/internal/query"
)

func main() {
	query.NewApp().Run()
}
