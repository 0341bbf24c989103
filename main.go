// =============================================================================
// docbatch - Main Entry Point
// =============================================================================
//
// USAGE:
//   docbatch run        - generate, convert, rasterize and stamp
//   docbatch check      - validate inputs and print the batch plan
//   docbatch version    - display the application version
//
// ARCHITECTURE:
//   - cmd/        : CLI command definitions (Cobra)
//   - internal/   : stages, configuration, logging
//   - pkg/utils/  : working directory layout, discovery, locking
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/docbatch/cmd"
)

func main() {
	cmd.Execute()
}
