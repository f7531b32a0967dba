package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	redRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).
			Bold(true).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

// TableWithReds is a table where selected rows (the failed runs) are highlighted.
type TableWithReds struct {
	Table *lgtable.Table
	Count int
	Reds  map[int]bool
}

// Row appends a row, highlighted if isRed.
func (t *TableWithReds) Row(isRed bool, row ...string) {
	if isRed {
		t.Reds[t.Count] = true
	}
	t.Table.Row(row...)
	t.Count++
}

// runColumns are the headers of the table of runs, matching runCells.
var runColumns = []string{"Size", "Run", "Padded", "Waves", "Parallel", "Sequential", "Speedup", "Result"}

// runCells formats one run, and reports whether it succeeded: a run fails if it returned an error or
// if its result disagrees with the sequential sort.
func runCells(result runResult) (cells []string, ok bool) {
	size, runStr := humanize.Comma(int64(result.size)), fmt.Sprintf("#%d", result.run)
	if result.err != nil {
		return []string{size, runStr, "-", "-", "-", "-", "-", fmt.Sprintf("failed: %v", result.err)}, false
	}
	r := result.report
	status := "valid"
	if !r.Valid {
		status = fmt.Sprintf("Wrong result! %v", r.Mismatch)
	}
	return []string{size, runStr, humanize.Comma(int64(r.PaddedSize)), humanize.Comma(int64(r.Waves)),
		r.ParallelDuration.String(), r.SequentialDuration.String(), fmt.Sprintf("%.2fx", r.Speedup()), status}, r.Valid
}

// RunRow appends the row of one run, highlighted in red if it failed. It returns whether the run succeeded.
func (t *TableWithReds) RunRow(result runResult) bool {
	cells, ok := runCells(result)
	t.Row(!ok, cells...)
	return ok
}

// newRunsTable returns the table of runs with its headers: numbers right-aligned, the result left-aligned.
func newRunsTable() *TableWithReds {
	t := newPlainTableWithReds(lipgloss.Right, lipgloss.Right, lipgloss.Right, lipgloss.Right,
		lipgloss.Right, lipgloss.Right, lipgloss.Right, lipgloss.Left)
	t.Table.Headers(runColumns...)
	return t
}

func newPlainTable(alignments ...lipgloss.Position) *lgtable.Table {
	return newPlainTableWithReds(alignments...).Table
}

func newPlainTableWithReds(alignments ...lipgloss.Position) *TableWithReds {
	t := &TableWithReds{
		Reds: make(map[int]bool),
	}
	t.Table = lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				s = headerRowStyle
				return
			}
			if t.Reds[row] {
				s = redRowStyle
			} else if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			} else if len(alignments) > 0 {
				alignment = alignments[len(alignments)-1]
			}
			s = s.Align(alignment)
			return
		})
	return t
}
