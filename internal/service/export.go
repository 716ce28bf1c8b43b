package service

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/iliyamo/tooling-tracker/internal/model"
)

// utf8BOM lets spreadsheet programs detect the encoding.
const utf8BOM = "\ufeff"

const csvDateLayout = "2006-01-02 15:04"

// AggregateCSVHeader is the column order of the tool overview export.
var AggregateCSVHeader = []string{
	"BATCH #", "LAST DATE", "LAST ACTION", "STATUS", "BM#", "ROLE", "POSITION", "DIM", "NEW DIM", "REASON",
}

// HistoryCSVHeader is the column order of the per-tool history export.
var HistoryCSVHeader = []string{
	"BATCH #", "DATE", "ACTION", "FROM_STATUS", "TO_STATUS", "BM#", "ROLE", "POSITION",
	"SHIFT", "REASON", "DIM", "NEW_DIM", "USER", "NOTE",
}

// WriteAggregateCSV writes one row per aggregate view.
func WriteAggregateCSV(w io.Writer, views []AggregateView) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(AggregateCSVHeader); err != nil {
		return err
	}
	for _, v := range views {
		reason := ""
		if v.Reason != nil {
			reason = *v.Reason
		}
		if err := cw.Write([]string{
			v.Code,
			formatTime(v.LastDate),
			v.LastAction,
			string(v.Status),
			v.EquipmentLabel,
			v.Role,
			v.Position,
			FormatDimension(v.Dimension),
			FormatDimension(v.NewDimension),
			reason,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteHistoryCSV writes one row per event in the order given.
func WriteHistoryCSV(w io.Writer, events []model.Event) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(HistoryCSVHeader); err != nil {
		return err
	}
	for _, e := range events {
		at := e.HappenedAt
		if err := cw.Write([]string{
			e.BatchNo,
			formatTime(&at),
			string(e.Action),
			string(e.FromStatus),
			string(e.ToStatus),
			e.MachineName,
			e.Role,
			e.Position,
			e.Shift,
			e.ReasonText(),
			FormatDimension(e.Dimension),
			FormatDimension(e.NewDimension),
			e.UserName,
			e.Note,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(csvDateLayout)
}
