package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/web3tea/tidelog/eventstore"
)

const maxCellWidth = 60

// renderEvents prints a query result as a table, one row per event, with the
// max sequence number in the footer.
func renderEvents(result eventstore.QueryResult) {
	typeColor := color.New(color.FgCyan, color.Bold).SprintFunc()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Seq", "Occurred At", "Type", "Payload", "Metadata"})

	for _, e := range result.Events {
		t.AppendRow(table.Row{
			e.SequenceNumber,
			e.OccurredAt.Format(time.RFC3339),
			typeColor(e.Type),
			renderObject(e.Payload),
			renderObject(e.Metadata),
		})
	}

	t.AppendFooter(table.Row{"", "", "", "max sequence", result.MaxSequenceNumber})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: maxCellWidth},
		{Number: 5, WidthMax: maxCellWidth},
	})
	t.Style().Title.Align = text.AlignCenter
	t.Render()
}

func renderObject(obj map[string]any) string {
	if len(obj) == 0 {
		return "{}"
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Sprintf("%v", obj)
	}
	if len(data) > maxCellWidth {
		return string(data[:maxCellWidth-3]) + "..."
	}
	return string(data)
}
