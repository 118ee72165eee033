package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"peeringmatcher/internal/peering"
)

const timestampLayout = "2006-01-02 15:04:05"

// Render draws t as a bordered table with a rule between every row.
func Render(w io.Writer, t Table) error {
	rows := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		rows = append(rows, append([]string{r.Label}, r.Cells...))
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(true).
		Headers(t.Header...).
		Rows(rows...)

	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}

func heading(kind peering.LocationKind) string {
	switch kind {
	case peering.Facility:
		return "Common facilities"
	default:
		return "Common IXPs"
	}
}

// NoMatchMessage is printed instead of an empty table.
func NoMatchMessage(kind peering.LocationKind, requested []peering.NetworkID) string {
	return fmt.Sprintf("No %s found for %s", strings.ToLower(heading(kind)[:1])+heading(kind)[1:], peering.JoinIDs(requested))
}

// RenderReport prints both tables, each preceded by its heading, or a single
// informational line when a table has no rows.
func RenderReport(w io.Writer, r Report) error {
	stamp := r.GeneratedAt.UTC().Format(timestampLayout)
	for i, t := range []Table{r.Exchanges, r.Facilities} {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if t.Empty() {
			if _, err := fmt.Fprintln(w, NoMatchMessage(t.Kind, r.Requested)); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%s according to PeeringDB - time of generation: %s\n", heading(t.Kind), stamp); err != nil {
			return err
		}
		if err := Render(w, t); err != nil {
			return err
		}
	}
	return nil
}
