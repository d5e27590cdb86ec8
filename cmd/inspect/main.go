package main

import (
	"chat-relay/internal"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/badger"`
	// INSPECT_COLOURS enables colorized headers
	Colours bool `envconfig:"INSPECT_COLOURS" default:"true"`
}

func main() {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}

	dbPath := flag.String("db", config.BadgerFilepath, "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	limit := flag.Int("limit", 100, "Maximum number of rows, 0 for all")
	flag.Parse()

	if err := inspect(*dbPath, *prefix, *limit, config.Colours); err != nil {
		fmt.Fprintf(os.Stderr, "inspect failed: %v\n", err)
		os.Exit(1)
	}
}

func inspect(dbPath, prefix string, limit int, colours bool) error {
	db, err := badger.Open(badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true))
	if err != nil {
		return fmt.Errorf("open badger: %w", err)
	}
	defer db.Close()

	rows, err := internal.Scan(db, prefix, limit, nil)
	if err != nil {
		return err
	}

	header := fmt.Sprintf("%d entries under %q", len(rows), prefix)
	if colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	fmt.Println(header)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity ID", "Detail"})
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
	for _, row := range rows {
		table.Append([]string{row.Key, row.Type, row.Timestamp, row.EntityID, strings.ReplaceAll(row.Detail, "\n", " ")})
	}
	table.Render()
	return nil
}
