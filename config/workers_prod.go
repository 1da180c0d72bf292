//go:build !dev

package config

import (
	"os"
	"strconv"
)

// ScanWorkers returns the number of provider scanners the arbiter may run
// concurrently during onboarding. Prod default: 3. Override with
// SCAN_WORKERS.
func ScanWorkers() int {
	if v := os.Getenv("SCAN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 3
}
