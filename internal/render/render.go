// Package render formats one-shot pipe listings: a styled table, plain
// labeled sections, or semicolon-delimited CSV.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pipewatch/pipewatch/internal/pipes"
)

// Format names accepted by Listing.
const (
	FormatTable    = "table"
	FormatSections = "sections"
	FormatCSV      = "csv"
)

var (
	headerColor = lipgloss.Color("#2563eb")
	dimColor    = lipgloss.Color("#6b7280")
)

// Listing writes infos in the requested format. An empty format means table.
func Listing(w io.Writer, format string, infos []pipes.Info, color bool) error {
	switch format {
	case "", FormatTable:
		Table(w, infos, color)
	case FormatSections:
		Sections(w, infos)
	case FormatCSV:
		CSV(w, infos)
	default:
		return fmt.Errorf("unknown output format %q (want %s, %s or %s)",
			format, FormatTable, FormatSections, FormatCSV)
	}
	return nil
}

// Table writes aligned columns: name, instance counts, security descriptor.
func Table(w io.Writer, infos []pipes.Info, color bool) {
	nameW := len("NAME")
	instW := len("INSTANCES")
	for _, info := range infos {
		if n := len(info.Name); n > nameW {
			nameW = n
		}
		if n := len(instances(info)); n > instW {
			instW = n
		}
	}

	header := fmt.Sprintf("%-*s  %-*s  %s", nameW, "NAME", instW, "INSTANCES", "SECURITY")
	if color {
		header = lipgloss.NewStyle().Foreground(headerColor).Bold(true).Render(header)
	}
	fmt.Fprintln(w, header)

	for _, info := range infos {
		sd := info.SecurityDescriptor
		if sd == "" {
			sd = "-"
		}
		fmt.Fprintf(w, "%-*s  %-*s  %s\n", nameW, info.Name, instW, instances(info), sd)
	}

	total := fmt.Sprintf("%d pipes", len(infos))
	if color {
		total = lipgloss.NewStyle().Foreground(dimColor).Render(total)
	}
	fmt.Fprintln(w, total)
}

// Sections writes one labeled block per pipe, blank-line separated.
func Sections(w io.Writer, infos []pipes.Info) {
	for i, info := range infos {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Name:      %s\n", info.Name)
		fmt.Fprintf(w, "Path:      %s\n", info.Path)
		fmt.Fprintf(w, "Instances: %s of %s\n", count(info.CurrentInstances), count(info.MaxInstances))
		if info.SecurityDescriptor != "" {
			fmt.Fprintf(w, "Security:  %s\n", info.SecurityDescriptor)
		}
		if owner := info.Metadata["owner"]; owner != "" {
			fmt.Fprintf(w, "Owner:     %s\n", owner)
		}
	}
}

// escapedSemicolon stands in for the field delimiter inside CSV fields.
// SDDL strings are full of semicolons, so rows would otherwise change width.
const escapedSemicolon = "%3B"

func Escape(field string) string {
	return strings.ReplaceAll(field, ";", escapedSemicolon)
}

func Unescape(field string) string {
	return strings.ReplaceAll(field, escapedSemicolon, ";")
}

// CSV writes one semicolon-delimited row per pipe after a header row.
// Counts stay raw, with -1 for unknown.
func CSV(w io.Writer, infos []pipes.Info) {
	fmt.Fprintln(w, "name;path;current_instances;max_instances;security_descriptor")
	for _, info := range infos {
		fmt.Fprintf(w, "%s;%s;%d;%d;%s\n",
			Escape(info.Name), Escape(info.Path),
			info.CurrentInstances, info.MaxInstances,
			Escape(info.SecurityDescriptor))
	}
}

func instances(info pipes.Info) string {
	return count(info.CurrentInstances) + "/" + count(info.MaxInstances)
}

func count(v int64) string {
	if v < 0 {
		return "?"
	}
	return fmt.Sprintf("%d", v)
}
