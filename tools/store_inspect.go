package main

import (
	"chat-sync/repositories"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

// inspectConfig is read from INSPECT_* variables.
type inspectConfig struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/badger"`
	Prefix         string `default:"node:"`
	Limit          int    `default:"200"`
	Width          int    `default:"80"`
}

func main() {
	var config inspectConfig
	if err := envconfig.Process("inspect", &config); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithLogger(nil))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Name", "Value"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	count := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(config.Prefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix) && count < config.Limit; it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(raw []byte) error {
				entry, err := repositories.DecodeEntry(key, raw)
				if err != nil {
					fmt.Printf("Error decoding key %s: %v\n", key, err)
					return nil
				}
				table.Append([]string{key, entry.Kind, entry.Name, render(entry.Value, config.Width)})
				count++
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
	fmt.Printf("%d entries under %q\n", count, config.Prefix)
}

func render(value any, width int) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	text := []rune(string(raw))
	if width > 3 && len(text) > width {
		return string(text[:width-3]) + "..."
	}
	return string(text)
}
