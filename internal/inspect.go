package internal

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// InspectRow is one badger entry, decoded enough to be read by a human.
type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Detail    string
}

type RowMapper func(key string, val []byte) InspectRow

// Scan maps every entry under prefix, stopping after limit rows when limit is positive.
func Scan(db *badger.DB, prefix string, limit int, mapper RowMapper) ([]InspectRow, error) {
	if mapper == nil {
		mapper = DefaultMapper
	}
	rows := make([]InspectRow, 0)
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			if limit > 0 && len(rows) == limit {
				return nil
			}
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				rows = append(rows, mapper(string(item.Key()), val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return rows, err
}

// DefaultMapper understands the relay's key layout and falls back to the raw size.
func DefaultMapper(key string, val []byte) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Type:      strings.ToUpper(parts[0]),
		Timestamp: "--:--:--",
		EntityID:  "-",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	switch {
	case parts[0] == "msg" && len(parts) == 4:
		row.EntityID = shortID(parts[3])
		if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			row.Timestamp = time.Unix(0, tsNano).UTC().Format("15:04:05")
		}
		row.Detail = field(val, "content")
	case parts[0] == "user" && len(parts) == 3 && parts[1] == "id":
		row.EntityID = trimZeros(parts[2])
		row.Detail = field(val, "username")
	case parts[0] == "user" && len(parts) == 3:
		row.Type = "USER_" + strings.ToUpper(parts[1])
		row.EntityID = string(val)
		row.Detail = parts[2]
	case parts[0] == "room" && len(parts) == 2:
		row.EntityID = trimZeros(parts[1])
		row.Detail = field(val, "name")
	case parts[0] == "member" && len(parts) == 4:
		row.Type = "MEMBER_" + strings.ToUpper(parts[1])
		row.EntityID = trimZeros(parts[2])
		row.Detail = trimZeros(parts[3])
	case parts[0] == "file" && len(parts) == 2:
		row.EntityID = shortID(parts[1])
		row.Detail = field(val, "public_url")
	}
	return row
}

func field(val []byte, name string) string {
	var fields map[string]any
	if err := json.Unmarshal(val, &fields); err != nil {
		return "Size: " + strconv.Itoa(len(val)) + " bytes"
	}
	value, ok := fields[name].(string)
	if !ok {
		return "-"
	}
	return value
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func trimZeros(s string) string {
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
