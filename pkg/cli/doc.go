// Package cli holds the pieces shared by the accent command-line tool:
// kubectl-like configuration contexts, output formatting and terminal
// rendering.
//
// Configuration is stored in ~/.accent/<app>/config.yaml. Each context names
// a model/reference pair, a training corpus and an artifact store:
//
//	current_context: local
//	contexts:
//	  local:
//	    name: local
//	    corpus: data/samples
//	    clusters: 8
//	    storage:
//	      kind: local
//	      root: models
//
// Command-line flags override context values.
package cli
