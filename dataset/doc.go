// Package dataset provides the in-memory tabular model bound into the
// analysis sandbox as df.
//
// A Table is an ordered set of typed columns sharing one row index. Tables
// are immutable once built: every operation (Head, Filter, SortBy, GroupBy)
// returns a new Table or Column, so a single loaded dataset can be handed to
// any number of concurrent executions.
//
// Usage:
//
//	table, err := dataset.Load("sales.csv", data, dataset.LoadOptions{MaxRows: 100000})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(table.Head(5).Format())
package dataset
