package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/shopsync/shopsync/pkg/mapping"
	"github.com/shopsync/shopsync/pkg/paginator"
)

// printProducts renders the fetched products as a table on stdout.
func printProducts(products []mapping.Product) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Fetched Products (%d)", len(products)))
	t.AppendHeader(table.Row{"#", "ID", "Title", "Updated At"})

	for i, p := range products {
		t.AppendRow(table.Row{i + 1, p.ID, p.Title, p.UpdatedAt})
	}

	t.Render()
}

// printSummary renders the run statistics on stdout.
func printSummary(stats paginator.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Summary Report")
	t.AppendRows([]table.Row{
		{"Total fetched", stats.TotalFetched},
		{"Total requests", stats.TotalRequests},
		{"Total retries", stats.TotalRetries},
		{"Total sleep (s)", fmt.Sprintf("%.2f", stats.TotalSleepSeconds)},
		{"Avg query cost", fmt.Sprintf("%.2f", stats.AvgQueryCost)},
	})
	t.Render()
}
