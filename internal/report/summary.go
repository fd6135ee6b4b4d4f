package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/gookit/color"

	"github.com/dbsmedya/gosymbol/internal/projector"
)

// TypeSummary aggregates the records of one containing type.
type TypeSummary struct {
	Type         string `json:"type"`
	Methods      int    `json:"methods"`
	Instructions int    `json:"instructions"`
	Bodiless     int    `json:"bodiless"`
	Public       int    `json:"public"`
}

func (s *TypeSummary) add(r projector.MethodRecord) {
	s.Methods++
	s.Instructions += r.Instructions
	if r.Instructions == 0 {
		s.Bodiless++
	}
	if r.AccessModifiers&int(projector.Public) != 0 {
		s.Public++
	}
}

// Summary is the per-type aggregation of an extraction, in the order types
// were first seen.
type Summary struct {
	Types []*TypeSummary `json:"types"`
	Total TypeSummary    `json:"total"`
}

// Summarize groups records by containing type.
func Summarize(records []projector.MethodRecord) *Summary {
	byType := orderedmap.NewOrderedMap[string, *TypeSummary]()
	sum := &Summary{Types: []*TypeSummary{}, Total: TypeSummary{Type: "total"}}

	for _, r := range records {
		name := noClass
		if r.ContainingClass != nil {
			name = *r.ContainingClass
		}
		ts, ok := byType.Get(name)
		if !ok {
			ts = &TypeSummary{Type: name}
			byType.Set(name, ts)
		}
		ts.add(r)
		sum.Total.add(r)
	}

	for el := byType.Front(); el != nil; el = el.Next() {
		sum.Types = append(sum.Types, el.Value)
	}
	return sum
}

// WriteSummary renders s as a table with a totals row.
func WriteSummary(w io.Writer, s *Summary, colorize bool) error {
	t := &table{
		header: []string{"TYPE", "METHODS", "PUBLIC", "BODILESS", "INSTR"},
		right:  map[int]bool{1: true, 2: true, 3: true, 4: true},
	}
	row := func(ts *TypeSummary) []string {
		return []string{
			ts.Type,
			strconv.Itoa(ts.Methods),
			strconv.Itoa(ts.Public),
			strconv.Itoa(ts.Bodiless),
			strconv.Itoa(ts.Instructions),
		}
	}
	for _, ts := range s.Types {
		t.rows = append(t.rows, row(ts))
	}
	t.rows = append(t.rows, row(&s.Total))

	if err := t.write(w, colorize); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// Status prints a one-line outcome, green for ok and red otherwise.
func Status(w io.Writer, ok bool, msg string, colorize bool) error {
	mark := "OK"
	if !ok {
		mark = "FAIL"
	}
	if colorize {
		if ok {
			mark = color.Green.Sprint(mark)
		} else {
			mark = color.Red.Sprint(mark)
		}
	}
	_, err := fmt.Fprintf(w, "%s %s\n", mark, msg)
	return err
}
