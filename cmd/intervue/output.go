package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// stdout and stderr are swapped out by tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	fmt.Fprintln(stderr, colorize(colorGreen, "✓ "+fmt.Sprintf(format, args...)))
}

func printError(format string, args ...any) {
	fmt.Fprintln(stderr, colorize(colorRed, "✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(stderr, colorize(colorYellow, "⚠ "+fmt.Sprintf(format, args...)))
}

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(stderr, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

func printStep(format string, args ...any) {
	fmt.Fprintln(stderr, colorize(colorCyan, "→ "+fmt.Sprintf(format, args...)))
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable writes rows under an upper-cased header, aligned in columns.
func printTable(header []string, rows [][]string) {
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(header, "\t")))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	tw.Flush()
}
