// Package report turns overlap results into display tables.
package report

import (
	"strings"
	"time"

	"peeringmatcher/internal/overlap"
	"peeringmatcher/internal/peering"
)

// Row is one location: its name followed by one cell per network.
type Row struct {
	Label string
	Cells []string
}

// Table is ready for a renderer. Header[0] labels the location column.
type Table struct {
	Kind   peering.LocationKind
	Header []string
	Rows   []Row
}

// Empty reports whether no location qualified.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// Report is everything one run produces.
type Report struct {
	GeneratedAt time.Time
	Requested   []peering.NetworkID
	Networks    []peering.NetworkInfo
	Exchanges   Table
	Facilities  Table
}

// Assemble builds a table whose columns follow infos exactly.
func Assemble(kind peering.LocationKind, result overlap.Result, infos []peering.NetworkInfo) Table {
	header := make([]string, 0, len(infos)+1)
	header = append(header, kind.Label())
	for _, info := range infos {
		header = append(header, info.Label())
	}

	rows := make([]Row, 0, len(result))
	for _, m := range result {
		cells := make([]string, 0, len(infos))
		for _, info := range infos {
			cells = append(cells, strings.Join(m.Addresses[info.ID], "\n"))
		}
		rows = append(rows, Row{Label: m.Location.Name, Cells: cells})
	}

	return Table{Kind: kind, Header: header, Rows: rows}
}
