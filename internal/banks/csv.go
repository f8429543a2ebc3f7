package banks

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/khanhbq56/money-tracking/internal/model"
)

const (
	numFields     = 7
	colCode       = 0
	colName       = 1
	colPattern    = 2
	colSuffix     = 3
	colEnabled    = 4
	colCustom     = 5
	colLastSyncAt = 6
)

var exportHeader = []string{"bank_code", "name", "sender_pattern", "account_suffix", "is_enabled", "is_custom", "last_sync_at"}

// WriteBanks writes bank configurations as CSV.
func WriteBanks(w io.Writer, banks []model.BankConfig) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, b := range banks {
		if err := cw.Write(MarshalBank(b)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalBank converts a BankConfig to a CSV row.
func MarshalBank(b model.BankConfig) []string {
	row := make([]string, numFields)
	row[colCode] = b.Code
	row[colName] = b.Name
	row[colPattern] = b.SenderPattern
	row[colSuffix] = b.AccountSuffix
	row[colEnabled] = strconv.FormatBool(b.IsEnabled)
	row[colCustom] = strconv.FormatBool(b.IsCustom)
	if b.LastSyncAt != nil {
		row[colLastSyncAt] = b.LastSyncAt.UTC().Format(time.RFC3339)
	}
	return row
}

// UnmarshalBank converts a CSV row to a BankConfig.
func UnmarshalBank(record []string) (model.BankConfig, error) {
	if len(record) != numFields {
		return model.BankConfig{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	enabled, err := strconv.ParseBool(record[colEnabled])
	if err != nil {
		return model.BankConfig{}, fmt.Errorf("parsing is_enabled %q: %w", record[colEnabled], err)
	}
	custom, err := strconv.ParseBool(record[colCustom])
	if err != nil {
		return model.BankConfig{}, fmt.Errorf("parsing is_custom %q: %w", record[colCustom], err)
	}

	var lastSync *time.Time
	if record[colLastSyncAt] != "" {
		t, err := time.Parse(time.RFC3339, record[colLastSyncAt])
		if err != nil {
			return model.BankConfig{}, fmt.Errorf("parsing last_sync_at %q: %w", record[colLastSyncAt], err)
		}
		lastSync = &t
	}

	return model.BankConfig{
		Code:          record[colCode],
		Name:          record[colName],
		SenderPattern: record[colPattern],
		AccountSuffix: record[colSuffix],
		IsEnabled:     enabled,
		IsCustom:      custom,
		LastSyncAt:    lastSync,
	}, nil
}

// ReadCustomInputs reads custom bank definitions from a CSV with a header
// row and the columns name, sender_pattern and an optional account_suffix.
// A WriteBanks export is accepted too; its custom rows are returned and
// predefined banks are skipped.
func ReadCustomInputs(r io.Reader) ([]model.CustomBankInput, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading custom banks CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}
	if records[0][0] == exportHeader[0] {
		return customFromExport(records[1:])
	}

	var inputs []model.CustomBankInput
	for i, rec := range records[1:] {
		if len(rec) < 2 || len(rec) > 3 {
			return nil, fmt.Errorf("row %d: expected 2 or 3 fields, got %d", i+2, len(rec))
		}
		in := model.CustomBankInput{Name: rec[0], SenderPattern: rec[1]}
		if len(rec) == 3 {
			in.AccountSuffix = rec[2]
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func customFromExport(records [][]string) ([]model.CustomBankInput, error) {
	var inputs []model.CustomBankInput
	for i, rec := range records {
		b, err := UnmarshalBank(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if !b.IsCustom {
			continue
		}
		inputs = append(inputs, model.CustomBankInput{
			Name:          b.Name,
			SenderPattern: b.SenderPattern,
			AccountSuffix: b.AccountSuffix,
		})
	}
	return inputs, nil
}
