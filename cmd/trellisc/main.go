// Command trellisc compiles a block tree document to CSS, an HTML template
// and a font map, or renders the template with data.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sambeau/trellis/pkg/compiler"
	"github.com/sambeau/trellis/pkg/directive"
	"github.com/sambeau/trellis/pkg/store"
)

// Version is set at compile time via -ldflags
var Version = "0.1.0-dev"

// errDiagnostics is returned in strict mode when a compilation reports
// problems.
var errDiagnostics = errors.New("compilation reported diagnostics")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "trellisc: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("trellisc", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() { printUsage(stderr) }

	var (
		format        = flags.String("format", "json", "Output: json, html, css, template or fonts")
		dataPath      = flags.String("data", "", "JSON or YAML file of render data (html format)")
		blockDataPath = flags.String("block-data", "", "JSON or YAML file mapping block ids to block data (html format)")
		componentsDir = flags.String("components", "", "Store directory holding components/")
		baseURL       = flags.String("base-url", "", "Prefix for root-relative image sources")
		classPrefix   = flags.String("class-prefix", compiler.DefaultClassPrefix, "Prefix for generated class names")
		preserveFalsy = flags.Bool("preserve-falsy", false, "Keep empty strings and zero inside repeaters")
		strict        = flags.Bool("strict", false, "Exit with an error when diagnostics are reported")
		verbose       = flags.Bool("v", false, "Log compilation details to stderr")
		showVersion   = flags.Bool("version", false, "Show version")
	)

	if err := flags.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Fprintf(stdout, "trellisc version %s\n", Version)
		return nil
	}
	if flags.NArg() > 1 {
		return fmt.Errorf("expected at most one input file, got %d", flags.NArg())
	}

	input, name, err := readInput(flags.Arg(0), stdin)
	if err != nil {
		return err
	}

	var lookup compiler.Lookup
	if *componentsDir != "" {
		fs, err := store.NewFileStore(*componentsDir)
		if err != nil {
			return fmt.Errorf("opening components: %w", err)
		}
		lookup = store.Lookup(ctx, fs)
	}

	opts := compiler.Options{
		ClassPrefix:              *classPrefix,
		BaseURL:                  *baseURL,
		PreserveFalsyInRepeaters: *preserveFalsy,
	}
	if *verbose {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, NoColor: true}).
			With().Str("input", name).Logger()
		opts.Logger = &logger
	}

	result, err := compiler.New(lookup, opts).Compile(input)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	for _, d := range result.Diagnostics {
		fmt.Fprintf(stderr, "%s: %s\n", name, d)
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(result); err != nil {
			return err
		}
	case "css":
		fmt.Fprint(stdout, result.CSS)
	case "template":
		fmt.Fprintln(stdout, result.HTML)
	case "fonts":
		for _, family := range result.Fonts.Families() {
			weights := result.Fonts[family].Weights
			fmt.Fprintf(stdout, "%s: %s\n", family, strings.Join(weights, ", "))
		}
	case "html":
		data, err := readDataFile(*dataPath)
		if err != nil {
			return err
		}
		blockData, err := readDataFile(*blockDataPath)
		if err != nil {
			return err
		}
		body, err := directive.Render(result.HTML, data, map[string]directive.Func{
			"block_data": func(args ...any) (any, error) {
				if len(args) == 0 {
					return nil, errors.New("block_data: missing block id")
				}
				if d, ok := blockData[directive.ToString(args[0])]; ok {
					return d, nil
				}
				return map[string]any{}, nil
			},
		})
		if err != nil {
			return fmt.Errorf("rendering: %w", err)
		}
		if result.CSS != "" {
			fmt.Fprintf(stdout, "<style>\n%s</style>\n", result.CSS)
		}
		fmt.Fprintln(stdout, body)
	default:
		return fmt.Errorf("unknown format %q (must be json, html, css, template or fonts)", *format)
	}

	if *strict && len(result.Diagnostics) > 0 {
		return fmt.Errorf("%w: %d", errDiagnostics, len(result.Diagnostics))
	}
	return nil
}

// readInput reads the block tree from path, or stdin when path is empty or
// "-". YAML documents are converted to JSON.
func readInput(path string, stdin io.Reader) ([]byte, string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, "", fmt.Errorf("reading stdin: %w", err)
		}
		return data, "<stdin>", nil
	}
	data, err := readDocument(path)
	if err != nil {
		return nil, "", err
	}
	return data, path, nil
}

func readDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = store.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return data, nil
}

func readDataFile(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if v == nil {
		v = map[string]any{}
	}
	return v, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `trellisc - compile a block tree

Usage:
  trellisc [options] [file]

Reads a JSON or YAML block tree from file, or stdin when file is omitted
or "-". Diagnostics are written to stderr.

Options:
  -format FORMAT      json (default), html, css, template or fonts
  -data FILE          Render data for -format html
  -block-data FILE    Block data by block id for -format html
  -components DIR     Store directory holding components/
  -base-url URL       Prefix for root-relative image sources
  -class-prefix P     Prefix for generated class names (default %q)
  -preserve-falsy     Keep empty strings and zero inside repeaters
  -strict             Fail when diagnostics are reported
  -v                  Log compilation details
  -version            Show version

Examples:
  trellisc page.json                       Print the compile result as JSON
  trellisc -format css page.json           Print only the stylesheet
  trellisc -format html -data d.yaml p.json
  trellisc -components ./site page.yaml    Resolve components from ./site
`, compiler.DefaultClassPrefix)
}
