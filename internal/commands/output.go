package commands

import (
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetBorder(false)
	t.SetAutoWrapText(false)
	return t
}

func formatTime(t *time.Time, never string) string {
	if t == nil || t.IsZero() {
		return never
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func formatAmount(d decimal.Decimal) string {
	return d.Round(2).String()
}

func formatPercent(d decimal.Decimal) string {
	return d.Shift(2).StringFixed(0) + "%"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
