package spreadsheet

import (
	"fmt"
	"strings"
)

// Group is a MAIN row with the child rows that share its ID
type Group struct {
	ID       string
	Main     Record
	Children []Record
}

// RowNumbers returns the sheet rows of the group, main row first
func (g Group) RowNumbers() []int {
	out := make([]int, 0, len(g.Children)+1)
	out = append(out, g.Main.RowNumber)
	for _, c := range g.Children {
		out = append(out, c.RowNumber)
	}
	return out
}

// GroupError is a row that could not be attached to a group
type GroupError struct {
	RowNumber int
	Reason    string
	Record    Record
}

// GroupByRowType rebuilds one-to-many records from a flat sheet. Rows whose
// typeColumn equals mainType open a group keyed by idColumn; rows of one of
// childTypes join the group with the same ID wherever they appear. Groups keep
// the order of their main rows. Orphan children, unknown row types and a
// second main row for an ID are reported as errors.
func GroupByRowType(records []Record, idColumn, typeColumn, mainType string, childTypes ...string) ([]Group, []GroupError) {
	isChild := make(map[string]bool, len(childTypes))
	for _, t := range childTypes {
		isChild[strings.ToUpper(t)] = true
	}
	mainType = strings.ToUpper(mainType)

	var (
		groups   []Group
		errs     []GroupError
		index    = map[string]int{}
		children = map[string][]Record{}
		order    []string
	)
	for _, rec := range records {
		id := strings.TrimSpace(rec.Get(idColumn))
		rowType := strings.ToUpper(strings.TrimSpace(rec.Get(typeColumn)))
		switch {
		case id == "":
			errs = append(errs, GroupError{RowNumber: rec.RowNumber, Reason: fmt.Sprintf("%s is required", idColumn), Record: rec})
		case rowType == mainType:
			if _, dup := index[id]; dup {
				errs = append(errs, GroupError{RowNumber: rec.RowNumber, Reason: fmt.Sprintf("duplicate %s row for %s %q", mainType, idColumn, id), Record: rec})
				continue
			}
			index[id] = len(groups)
			groups = append(groups, Group{ID: id, Main: rec})
		case isChild[rowType]:
			if _, seen := children[id]; !seen {
				order = append(order, id)
			}
			children[id] = append(children[id], rec)
		default:
			errs = append(errs, GroupError{RowNumber: rec.RowNumber, Reason: fmt.Sprintf("unknown %s %q", typeColumn, rec.Get(typeColumn)), Record: rec})
		}
	}

	for _, id := range order {
		i, ok := index[id]
		if !ok {
			for _, rec := range children[id] {
				errs = append(errs, GroupError{
					RowNumber: rec.RowNumber,
					Reason:    fmt.Sprintf("no %s row with %s %q", mainType, idColumn, id),
					Record:    rec,
				})
			}
			continue
		}
		groups[i].Children = children[id]
	}
	return groups, errs
}
