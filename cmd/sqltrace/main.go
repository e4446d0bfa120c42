// Package main provides the sqltrace command-line tool.
package main

import (
	"os"

	"github.com/leapstack-labs/sqltrace/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
