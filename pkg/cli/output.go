package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	FormatYAML OutputFormat = "yaml"
	FormatJSON OutputFormat = "json"
	// FormatRaw writes strings and byte slices unchanged and falls back to
	// YAML for anything else.
	FormatRaw OutputFormat = "raw"
)

// OutputOptions configures Output.
type OutputOptions struct {
	// Format defaults to FormatYAML.
	Format OutputFormat

	// File receives the output instead of stdout.
	File string

	// Indent for JSON, default two spaces.
	Indent string

	// Writer overrides File.
	Writer io.Writer
}

// Output renders result to the configured destination.
func Output(result any, opts OutputOptions) error {
	w := opts.Writer
	if w == nil && opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if w == nil {
		w = os.Stdout
	}

	switch opts.Format {
	case FormatYAML, "":
		return writeYAML(w, result)
	case FormatJSON:
		enc := json.NewEncoder(w)
		indent := opts.Indent
		if indent == "" {
			indent = "  "
		}
		enc.SetIndent("", indent)
		return enc.Encode(result)
	case FormatRaw:
		switch v := result.(type) {
		case []byte:
			_, err := w.Write(v)
			return err
		case string:
			_, err := io.WriteString(w, v)
			return err
		}
		return writeYAML(w, result)
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

func writeYAML(w io.Writer, result any) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// PrintSuccess prints a success message with checkmark
func PrintSuccess(format string, args ...any) {
	fmt.Printf("✓ "+format+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...any) {
	fmt.Printf("ℹ "+format+"\n", args...)
}

// PrintWarning prints a warning to stderr so it never mixes with
// structured output on stdout.
func PrintWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "⚠ "+format+"\n", args...)
}

// PrintVerbose prints verbose output to stderr
func PrintVerbose(verbose bool, format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}
