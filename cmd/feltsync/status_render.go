package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// renderHealthLine formats a labelled count, colored by severity: green when
// zero, yellow for an outstanding backlog, red for failures.
func renderHealthLine(label string, count int, colorize bool) string {
	base := fmt.Sprintf("  %-16s %d", label+":", count)
	if !colorize {
		return base
	}
	color := ansiGreen
	if count > 0 {
		color = ansiYellow
		if label == "Failed" {
			color = ansiRed
		}
	}
	return color + base + ansiReset
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
