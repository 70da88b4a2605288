package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/eventops/server/internal/domain/attendees"
	"github.com/eventops/server/internal/domain/budgets"
	"github.com/stretchr/testify/require"
)

func sampleRoster() []attendees.Attendee {
	checkedIn := time.Date(2026, 3, 14, 18, 5, 0, 0, time.UTC)
	return []attendees.Attendee{
		{
			ULID:        "01HYX3KQW7ERTV9XNBM2P8QJA1",
			Name:        "Ada Lovelace",
			Email:       "ada@example.test",
			TicketType:  "vip",
			CheckedInAt: &checkedIn,
			CreatedAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			ULID:       "01HYX3KQW7ERTV9XNBM2P8QJA2",
			Name:       "Grace Hopper, PhD",
			Email:      "grace@example.test",
			TicketType: "general",
			CreatedAt:  time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		},
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatCSV, format)

	format, err = ParseFormat("json")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	_, err = ParseFormat("xlsx")
	require.Error(t, err)
}

func TestAttendeesCSVQuotesFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Attendees(&buf, FormatCSV, sampleRoster()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, []string{"id", "name", "email", "ticket_type", "checked_in_at", "registered_at"}, records[0])
	require.Equal(t, "Grace Hopper, PhD", records[2][1])
	require.Equal(t, "vip", records[1][3])
	require.Equal(t, "2026-03-14T18:05:00Z", records[1][4])
	require.Empty(t, records[2][4])
}

func TestAttendeesJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Attendees(&buf, FormatJSON, sampleRoster()))

	var records []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	require.Len(t, records, 2)
	require.Equal(t, "ada@example.test", records[0]["email"])
	require.Equal(t, "vip", records[0]["ticket_type"])
	_, hasCheckIn := records[1]["checked_in_at"]
	require.False(t, hasCheckIn)
}

func TestBudgetItemsCSV(t *testing.T) {
	var buf bytes.Buffer
	items := []budgets.Item{
		{ULID: "01HYX3KQW7ERTV9XNBM2P8QJB1", Kind: budgets.KindExpense, Category: "venue", PlannedCents: 500_000, ActualCents: 520_000},
	}
	require.NoError(t, BudgetItems(&buf, FormatCSV, items))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[1], "500000")
	require.Contains(t, lines[1], "expense")
}

func TestFilename(t *testing.T) {
	require.Equal(t, "attendees-01HYX.csv", Filename("attendees", "01HYX", FormatCSV))
	require.Equal(t, "budget-01HYX.json", Filename("budget", "01HYX", FormatJSON))
}
