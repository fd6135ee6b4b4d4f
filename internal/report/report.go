// Package report renders method records for the command line.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/dbsmedya/gosymbol/internal/projector"
)

// noClass labels records that have no containing type.
const noClass = "-"

// WriteJSON encodes v as JSON followed by a newline.
func WriteJSON(w io.Writer, v interface{}, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// table lays out rows in columns padded to their display width.
type table struct {
	header []string
	rows   [][]string
	right  map[int]bool // right-aligned columns
}

func (t *table) write(w io.Writer, colorize bool) error {
	widths := make([]int, len(t.header))
	for _, row := range append([][]string{t.header}, t.rows...) {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	line := func(cells []string, style func(...interface{}) string) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			pad := strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell))
			if style != nil {
				cell = style(cell)
			}
			if t.right[i] {
				parts[i] = pad + cell
			} else if i < len(cells)-1 {
				parts[i] = cell + pad
			} else {
				parts[i] = cell
			}
		}
		return strings.Join(parts, "  ") + "\n"
	}

	var header func(...interface{}) string
	if colorize {
		header = color.Bold.Sprint
	}
	if _, err := io.WriteString(w, line(t.header, header)); err != nil {
		return err
	}
	for _, row := range t.rows {
		if _, err := io.WriteString(w, line(row, nil)); err != nil {
			return err
		}
	}
	return nil
}

// WriteTable renders records as aligned columns with decoded modifiers.
func WriteTable(w io.Writer, records []projector.MethodRecord, colorize bool) error {
	t := &table{
		header: []string{"CLASS", "METHOD", "MODIFIERS", "RETURNS", "PARAMETERS", "INSTR"},
		right:  map[int]bool{5: true},
	}
	for _, r := range records {
		class := noClass
		if r.ContainingClass != nil {
			class = *r.ContainingClass
		}
		t.rows = append(t.rows, []string{
			class,
			r.FullyQualifiedName,
			projector.FormatMask(r.AccessModifiers),
			r.ReturnType,
			"(" + strings.Join(r.Parameters, ", ") + ")",
			strconv.Itoa(r.Instructions),
		})
	}
	if err := t.write(w, colorize); err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}

	footer := fmt.Sprintf("%d methods", len(records))
	if colorize {
		footer = color.Gray.Sprint(footer)
	}
	if _, err := fmt.Fprintln(w, footer); err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}
	return nil
}
