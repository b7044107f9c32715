package main

import (
	"chat-relay/domain"
	"chat-relay/repositories"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to the relay badger directory")
	what := flag.String("show", "accounts", "What to dump: accounts, groups, direct or group")
	flag.Parse()

	// BypassLockGuard lets the dump run next to a live relay
	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	store := repositories.NewBadgerStore(db, logs.GetLoggerFromLevel(slog.LevelWarn))
	defer func() { _ = store.Close() }()

	if err := dump(context.Background(), os.Stdout, store, *what); err != nil {
		log.Fatal(err)
	}
}

func dump(ctx context.Context, w io.Writer, store *repositories.BadgerStore, what string) error {
	table := newTable(w)

	switch what {
	case "accounts":
		accounts, err := store.Accounts(ctx)
		if err != nil {
			return err
		}
		table.SetHeader([]string{"Username", "Online", "Created"})
		for _, a := range accounts {
			table.Append([]string{a.Username, strconv.FormatBool(a.Online), formatTime(a.CreatedAt)})
		}
	case "groups":
		groups, err := store.Groups(ctx)
		if err != nil {
			return err
		}
		table.SetHeader([]string{"Group", "Admin", "Members", "Count", "Created"})
		for _, g := range groups {
			table.Append([]string{g.Name, g.Admin, strings.Join(g.Members, ","), strconv.Itoa(len(g.Members)), formatTime(g.CreatedAt)})
		}
	case "direct", "group":
		scope := domain.HistoryDirect
		if what == "group" {
			scope = domain.HistoryGroup
		}
		records, err := store.Records(ctx, scope)
		if err != nil {
			return err
		}
		table.SetHeader([]string{"Timestamp", "Sender", "Target", "Content", "ID"})
		for _, r := range records {
			table.Append([]string{formatTime(r.Timestamp), r.Sender, r.Target, r.Content, r.ID.String()})
		}
	default:
		return fmt.Errorf("unknown -show value %q", what)
	}

	table.Render()
	return nil
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
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
	return table
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
