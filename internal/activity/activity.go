// Package activity keeps a local CSV log of sync, toggle and import outcomes.
package activity

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Entry is one row in the activity log.
type Entry struct {
	Timestamp time.Time
	Event     string
	BankCode  string
	Details   string
	Count     int
	EventID   string
}

// Header is the CSV header for activity-log.csv.
const Header = "timestamp,event,bank_code,details,count,event_id"

// FileName is the log file inside the activity directory.
const FileName = "activity-log.csv"

const (
	numFields    = 6
	colTimestamp = 0
	colEvent     = 1
	colBankCode  = 2
	colDetails   = 3
	colCount     = 4
	colEventID   = 5
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colEvent] = e.Event
	row[colBankCode] = e.BankCode
	row[colDetails] = e.Details
	row[colCount] = strconv.Itoa(e.Count)
	row[colEventID] = e.EventID
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	count, err := strconv.Atoi(record[colCount])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing count %q: %w", record[colCount], err)
	}

	return Entry{
		Timestamp: ts,
		Event:     record[colEvent],
		BankCode:  record[colBankCode],
		Details:   record[colDetails],
		Count:     count,
		EventID:   record[colEventID],
	}, nil
}

// Append writes entries to <dir>/activity-log.csv, creating the file and header if needed.
func Append(dir string, entries []Entry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating activity dir: %w", err)
	}

	path := filepath.Join(dir, FileName)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening activity log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns the entries of <dir>/activity-log.csv, oldest first. A
// non-empty bankCode keeps only that bank's entries. A missing log has no
// entries.
func Read(dir, bankCode string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening activity log: %w", err)
	}
	defer f.Close()

	return readEntries(f, bankCode)
}

func readEntries(r io.Reader, bankCode string) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields
	cr.ReuseRecord = true

	if _, err := cr.Read(); err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading activity log header: %w", err)
	}

	var entries []Entry
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading activity log CSV: %w", err)
		}
		if bankCode != "" && rec[colBankCode] != bankCode {
			continue
		}
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		entries = append(entries, e)
	}
}
