// Package main implements enginectl, the operator CLI for the scheduling
// engine: algorithm assignment, migration, item quality sweeps, and the
// sm2 vs fsrs comparison reports.
package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// Local development reads .env; in deployment the environment is real.
	_ = godotenv.Load()
	Execute()
}
