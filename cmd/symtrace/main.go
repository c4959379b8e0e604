package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/mattn/go-isatty"
	"github.com/npillmayer/schuko/tracing"
	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"

	"github.com/symtrace/symtrace/internal/allowlist"
	"github.com/symtrace/symtrace/internal/config"
)

func main() {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		pterm.DisableColor()
	}

	if len(os.Args) < 2 || isHelpArg(os.Args[1]) {
		printUsage()
		return
	}

	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	settingsFile := fs.String("f", "", "yaml settings overlay")
	tlevel := fs.String("trace", "Error", "Trace level [Debug|Info|Error]")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}
	tracer().SetTraceLevel(tracing.TraceLevelFromString(*tlevel))

	if *settingsFile != "" {
		if err := config.LoadFile(*settingsFile); err != nil {
			pterm.Error.Println(err)
			os.Exit(1)
		}
		// the policy's prefix table was seeded from the compiled defaults at
		// init time; fold in whatever the overlay added
		for _, p := range config.SkipPrefixes {
			allowlist.AddSkip(p)
		}
		tracer().Infof("applied settings from %s", *settingsFile)
	}

	switch cmd {
	case "config":
		runConfig()
	case "skip":
		runSkip(fs.Args())
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(2)
	}
}

func isHelpArg(arg string) bool {
	return arg == "help" || arg == "-help" || arg == "--help"
}

func printUsage() {
	fmt.Printf("Usage: %s <command> [flags] [args]\n\n", os.Args[0])
	fmt.Println("Commands:")
	fmt.Println("  config              print the effective engine configuration")
	fmt.Println("  skip <file...>      report which files the tracer treats as opaque")
	fmt.Println("  help                show this message")
	fmt.Println("\nFlags:")
	fmt.Println("  -f <settings.yaml>  apply a yaml settings overlay first")
	fmt.Println("  -trace <level>      trace level [Debug|Info|Error]")
}

// runConfig renders the effective settings as a yaml document, so the
// output can be fed back through -f unchanged.
func runConfig() {
	doc := config.Settings{
		DynamicPropagation: boolPtr(config.DynamicPropagation),
		DynamicShapes:      boolPtr(config.DynamicShapes),
		MaxRangeLen:        intPtr(config.MaxRangeLen),
		SkipPrefixes:       config.SkipPrefixes,
		ConstantFunctions:  config.ConstantFunctions(),
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	pterm.Info.Println("effective configuration")
	os.Stdout.Write(data)
}

// runSkip prints one verdict per filename and exits non-zero when any of
// them is opaque to the tracer, making the command usable as a check.
func runSkip(files []string) {
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s skip <filename> [filename...]\n", os.Args[0])
		os.Exit(2)
	}
	sort.Strings(files)
	anySkipped := false
	for _, f := range files {
		if allowlist.SkipFile(f) {
			anySkipped = true
			pterm.Warning.Printfln("skip    %s", f)
		} else {
			pterm.Success.Printfln("inline  %s", f)
		}
	}
	if anySkipped {
		os.Exit(1)
	}
}

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }
