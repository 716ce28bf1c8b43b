package service

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tooling-tracker/internal/model"
)

func TestWriteAggregateCSV(t *testing.T) {
	at := time.Date(2025, 6, 1, 14, 30, 59, 0, time.UTC)
	reason := "Die worn, badly"
	views := []AggregateView{
		{
			Code:           "BATCH-001",
			LastDate:       &at,
			LastAction:     "REMOVE",
			Status:         model.StatusNeedService,
			EquipmentLabel: "BM-01",
			Role:           "IRONING",
			Position:       "#1",
			Dimension:      decimal.NewNullDecimal(decimal.RequireFromString("63")),
			Reason:         &reason,
		},
		{Code: "BATCH-002", Status: model.StatusStock},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteAggregateCSV(&buf, views))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, utf8BOM))
	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, utf8BOM))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, AggregateCSVHeader, records[0])
	assert.Equal(t, []string{
		"BATCH-001", "2025-06-01 14:30", "REMOVE", "NEED_SERVICE", "BM-01", "IRONING", "#1", "63.000", "", "Die worn, badly",
	}, records[1])
	assert.Equal(t, []string{"BATCH-002", "", "", "STOCK", "", "", "", "", "", ""}, records[2])
}

func TestWriteHistoryCSV(t *testing.T) {
	events := []model.Event{
		{
			BatchNo:    "BATCH-001",
			HappenedAt: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
			Action:     model.ActionCreate,
			ToStatus:   model.StatusStock,
			UserName:   "system",
		},
		{
			BatchNo:      "BATCH-001",
			HappenedAt:   time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC),
			Action:       model.ActionRegrind,
			FromStatus:   model.StatusNeedService,
			ToStatus:     model.StatusStock,
			Dimension:    decimal.NewNullDecimal(decimal.RequireFromString("62.5")),
			NewDimension: decimal.NewNullDecimal(decimal.RequireFromString("63.75")),
			UserName:     "anna",
			Note:         "line \"2\"",
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteHistoryCSV(&buf, events))

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(buf.String(), utf8BOM))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, HistoryCSVHeader, records[0])
	assert.Equal(t, "2025-06-01 08:00", records[1][1])
	assert.Equal(t, []string{
		"BATCH-001", "2025-06-02 09:15", "REGRIND", "NEED_SERVICE", "STOCK", "", "", "",
		"", "", "62.500", "63.750", "anna", "line \"2\"",
	}, records[2])
}
