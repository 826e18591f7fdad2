package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"

	"market-chat/internal"
)

// Dumps the message log (or any other key family) as a terminal table.
// Works against a live database thanks to the read-only lock bypass.
func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	// Par défaut on cherche "msg:" pour éviter de percuter les index
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	color.New(color.BgBlack, color.FgGreen).
		Printf("  ====== market-chat inspect (%s) ======\n", *prefix)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity ID", "Namespace", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()

			// Sécurité : on ignore les index secondaires
			key := string(item.Key())
			if strings.HasPrefix(key, "reqidx:") || strings.HasPrefix(key, "userconv:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				row := internal.DefaultMapper(key, v)
				if strings.HasPrefix(row.Detail, "Size: ") {
					row.Detail = summarize(v)
				}
				table.Append([]string{
					row.Key,
					rowType(key),
					row.Timestamp,
					row.EntityID,
					row.Namespace,
					row.Detail,
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

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.ERROR)
	return badger.Open(opts)
}

func rowType(key string) string {
	family, _, ok := strings.Cut(key, ":")
	if !ok {
		return "RAW"
	}
	return strings.ToUpper(family)
}

// summarize renders a compact single-line view of a JSON value for the
// key families the mapper doesn't know about.
func summarize(val []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(val, &fields); err != nil {
		return fmt.Sprintf("%d bytes", len(val))
	}

	parts := make([]string, 0, len(fields))
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	out := strings.Join(parts, " ")
	if len(out) > 80 {
		out = out[:77] + "..."
	}
	return out
}
