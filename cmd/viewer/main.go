package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

// Operator tool: dumps the order book straight from BadgerDB, while the
// main process keeps running. Open in read-only with the lock guard
// bypassed so the running instance is undisturbed.
type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" required:"true"`
	Colours        bool   `envconfig:"VIEWER_COLOURS" default:"true"`
}

// Local copy of the stored layout to keep the viewer independent of the
// repository package.
type storedOrder struct {
	ID        string `json:"id"`
	TableID   string `json:"table_id"`
	Items     []struct {
		Name     string `json:"name"`
		Quantity int    `json:"quantity"`
	} `json:"items"`
	Total     int64  `json:"total"`
	Note      string `json:"note"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

func main() {
	prefix := flag.String("prefix", "order:", "Prefix to scan (order: or order:{table}:)")
	flag.Parse()

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Order ID", "Table", "Status", "Items", "Total", "Created", "Note"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var stored storedOrder
				if err := json.Unmarshal(v, &stored); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", string(it.Item().Key()), err)
					return nil
				}

				items := ""
				for _, item := range stored.Items {
					items += fmt.Sprintf("%dx %s ", item.Quantity, item.Name)
				}

				displayID := stored.ID
				if len(displayID) > 8 {
					displayID = displayID[:8]
				}

				table.Append([]string{
					displayID,
					stored.TableID,
					renderStatus(stored.Status, config.Colours),
					items,
					fmt.Sprintf("%d.%02d", stored.Total/100, stored.Total%100),
					time.Unix(0, stored.CreatedAt).Format("15:04:05"),
					stored.Note,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func renderStatus(status string, colours bool) string {
	if !colours {
		return status
	}
	switch status {
	case "PENDING":
		return color.New(color.FgYellow).Render(status)
	case "READY":
		return color.New(color.FgGreen).Render(status)
	case "CANCELLED", "REJECTED":
		return color.New(color.FgRed).Render(status)
	default:
		return status
	}
}
