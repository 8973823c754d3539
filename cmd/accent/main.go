// Command accent groups speech recordings into accent clusters.
//
// Usage:
//
//	accent [flags] <command> [args]
//
// Commands:
//
//	train     - extract features from a corpus and fit the cluster model
//	classify  - assign a recording to a cluster and list similar samples
//	serve     - HTTP classification endpoint with Prometheus metrics
//	inspect   - show model metadata and cluster sizes
//	config    - configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.accent/accent/
//	Use 'accent config' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/accent/cmd/accent/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
