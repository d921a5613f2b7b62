// Package sheets appends reservation rows to the studio's Google Sheets
// ledger.
package sheets

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/beryozskin/studio-bot/pkg/logging"
)

// Ledger appends rows to one spreadsheet range.
type Ledger struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	writeRange    string
	timeout       time.Duration
	logger        *logging.Logger
}

// New builds a ledger authorized with a service-account credentials file.
// writeRange is an A1 range like "Bookings!A:F".
func New(ctx context.Context, credentialsFile, spreadsheetID, writeRange string, timeout time.Duration, logger *logging.Logger) (*Ledger, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("sheets: spreadsheet id required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}
	return &Ledger{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		writeRange:    writeRange,
		timeout:       timeout,
		logger:        logger,
	}, nil
}

// Append writes one row to the end of the ledger range.
func (l *Ledger) Append(ctx context.Context, row []string) error {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	values := make([]interface{}, len(row))
	for i, cell := range row {
		values[i] = cell
	}

	_, err := l.svc.Spreadsheets.Values.Append(l.spreadsheetID, l.writeRange, &sheetsapi.ValueRange{
		Values: [][]interface{}{values},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: append row: %w", err)
	}
	l.logger.Debug("ledger row appended", "columns", len(row))
	return nil
}
