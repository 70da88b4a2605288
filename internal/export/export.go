// Package export renders attendee rosters and budget reports as CSV or JSON
// for download.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/eventops/server/internal/domain/attendees"
	"github.com/eventops/server/internal/domain/budgets"
)

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case FormatCSV, "":
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", value)
	}
}

// ContentType returns the MIME type to serve the export with.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json; charset=utf-8"
	}
	return "text/csv; charset=utf-8"
}

type attendeeRecord struct {
	ULID         string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	TicketType   string     `json:"ticket_type"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	RegisteredAt time.Time  `json:"registered_at"`
}

// Attendees writes the roster in the requested format.
func Attendees(w io.Writer, format Format, roster []attendees.Attendee) error {
	if format == FormatJSON {
		records := make([]attendeeRecord, 0, len(roster))
		for _, attendee := range roster {
			records = append(records, attendeeRecord{
				ULID:         attendee.ULID,
				Name:         attendee.Name,
				Email:        attendee.Email,
				TicketType:   attendee.TicketType,
				CheckedInAt:  attendee.CheckedInAt,
				RegisteredAt: attendee.CreatedAt,
			})
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(records)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "name", "email", "ticket_type", "checked_in_at", "registered_at"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, attendee := range roster {
		checkedIn := ""
		if attendee.CheckedInAt != nil {
			checkedIn = attendee.CheckedInAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			attendee.ULID,
			attendee.Name,
			attendee.Email,
			attendee.TicketType,
			checkedIn,
			attendee.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

type budgetRecord struct {
	ULID         string `json:"id"`
	Kind         string `json:"kind"`
	Category     string `json:"category"`
	Description  string `json:"description"`
	PlannedCents int64  `json:"planned_cents"`
	ActualCents  int64  `json:"actual_cents"`
}

// BudgetItems writes an event's budget lines in the requested format.
func BudgetItems(w io.Writer, format Format, items []budgets.Item) error {
	if format == FormatJSON {
		records := make([]budgetRecord, 0, len(items))
		for _, item := range items {
			records = append(records, budgetRecord{
				ULID:         item.ULID,
				Kind:         string(item.Kind),
				Category:     item.Category,
				Description:  item.Description,
				PlannedCents: item.PlannedCents,
				ActualCents:  item.ActualCents,
			})
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(records)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "kind", "category", "description", "planned_cents", "actual_cents"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, item := range items {
		record := []string{
			item.ULID,
			string(item.Kind),
			item.Category,
			item.Description,
			strconv.FormatInt(item.PlannedCents, 10),
			strconv.FormatInt(item.ActualCents, 10),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Filename builds a download filename like "attendees-01HYX….csv".
func Filename(prefix, eventULID string, format Format) string {
	return fmt.Sprintf("%s-%s.%s", prefix, eventULID, format)
}
