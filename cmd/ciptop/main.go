// ciptop is a live terminal dashboard over a cipserver's web introspection
// surface (§4.7 "small structured snapshot"): session count, fault state,
// and per-tag values, refreshed on an interval. Grounded on
// yatesdr-warlogix/tui's tview.Application/Flex layout and
// periodic-refresh-via-QueueUpdateDraw pattern, scaled down from that
// teacher's multi-tab cluster browser to a single scrolling table.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

type snapshot struct {
	Sessions      int   `json:"sessions"`
	Tags          []string `json:"tags"`
	Enabled       bool  `json:"enabled"`
	InducedStatus uint8 `json:"induced_status"`
	ForcedDelay   int64 `json:"forced_delay_ns"`
}

type tagResponse struct {
	Name  string `json:"name"`
	Value []any  `json:"value"`
	Error string `json:"error,omitempty"`
}

func main() {
	var base string
	var interval time.Duration
	flag.StringVar(&base, "http", "http://localhost:8080", "cipserver web introspection base URL")
	flag.DurationVar(&interval, "interval", time.Second, "refresh interval")
	flag.Parse()

	client := &http.Client{Timeout: 3 * time.Second}

	app := tview.NewApplication()

	header := tview.NewTextView().SetDynamicColors(true).SetTextAlign(tview.AlignCenter)
	header.SetText(fmt.Sprintf("[::b]ciptop[::-] — %s", base))

	status := tview.NewTextView().SetDynamicColors(true)
	status.SetBorder(true).SetTitle(" Server ")

	table := tview.NewTable().SetBorders(false).SetSelectable(true, false).SetFixed(1, 0)
	table.SetCell(0, 0, tview.NewTableCell("TAG").SetTextColor(tcell.ColorYellow).SetSelectable(false))
	table.SetCell(0, 1, tview.NewTableCell("VALUE").SetTextColor(tcell.ColorYellow).SetSelectable(false))
	tableFrame := tview.NewFrame(table).SetBorders(0, 0, 0, 0, 1, 1)
	tableFrame.SetBorder(true).SetTitle(" Tags ")

	footer := tview.NewTextView().SetDynamicColors(true).SetTextAlign(tview.AlignCenter)
	footer.SetText("[gray]q: quit   r: refresh now[-]")

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, 1, 0, false).
		AddItem(status, 4, 0, false).
		AddItem(tableFrame, 0, 1, true).
		AddItem(footer, 1, 0, false)

	refresh := func() {
		snap, err := fetchSnapshot(client, base)
		if err != nil {
			status.SetText(fmt.Sprintf("[red]error: %v[-]", err))
			return
		}
		status.SetText(fmt.Sprintf(
			"Sessions: [green]%d[-]   Enabled: %s   Induced status: 0x%02X   Forced delay: %s",
			snap.Sessions, enabledLabel(snap.Enabled), snap.InducedStatus,
			time.Duration(snap.ForcedDelay)))

		names := append([]string(nil), snap.Tags...)
		sort.Strings(names)
		for row := 1; row <= table.GetRowCount(); row++ {
			table.RemoveRow(row)
		}
		for i, name := range names {
			row := i + 1
			table.SetCell(row, 0, tview.NewTableCell(name))
			value, err := fetchTag(client, base, name)
			if err != nil {
				table.SetCell(row, 1, tview.NewTableCell(fmt.Sprintf("[red]%v[-]", err)))
				continue
			}
			table.SetCell(row, 1, tview.NewTableCell(fmt.Sprintf("%v", value.Value)))
		}
	}

	table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q':
			app.Stop()
			return nil
		case 'r':
			app.QueueUpdateDraw(refresh)
			return nil
		}
		return event
	})

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				app.QueueUpdateDraw(refresh)
			case <-stop:
				return
			}
		}
	}()

	app.QueueUpdateDraw(refresh)
	if err := app.SetRoot(root, true).SetFocus(table).Run(); err != nil {
		close(stop)
		fmt.Fprintln(os.Stderr, "ciptop:", err)
		os.Exit(1)
	}
	close(stop)
}

func enabledLabel(v bool) string {
	if v {
		return "[green]yes[-]"
	}
	return "[red]no[-]"
}

func fetchSnapshot(client *http.Client, base string) (snapshot, error) {
	var snap snapshot
	resp, err := client.Get(base + "/snapshot")
	if err != nil {
		return snap, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("snapshot: status %d", resp.StatusCode)
	}
	err = json.NewDecoder(resp.Body).Decode(&snap)
	return snap, err
}

func fetchTag(client *http.Client, base, name string) (tagResponse, error) {
	var tr tagResponse
	resp, err := client.Get(base + "/tags/" + name)
	if err != nil {
		return tr, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return tr, fmt.Errorf("tags/%s: status %d", name, resp.StatusCode)
	}
	err = json.NewDecoder(resp.Body).Decode(&tr)
	return tr, err
}
