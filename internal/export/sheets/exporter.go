// Package sheets archives monthly report summaries to a Google spreadsheet,
// one row per generated report.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finhealth/internal/analysis"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Config holds the spreadsheet target and service account credentials.
// Exactly one of CredentialsJSON or CredentialsFile must be set.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client from service account credentials.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Reports"
	}

	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(strings.TrimSpace(cfg.CredentialsFile))
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// AppendReport appends one summary row for the report. Amounts stay in whole
// currency units so the sheet matches the API exactly.
func (c *Client) AppendReport(ctx context.Context, report analysis.MonthlyReport, score analysis.HealthScore) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	row := []any{
		fmt.Sprintf("%04d-%02d", report.Year, report.Month),
		report.Summary.TotalIncome,
		report.Summary.TotalExpense,
		report.Summary.Net,
		report.Savings.CurrentRate,
		score.Overall,
		len(report.OverBudget),
		len(report.Anomalies),
		time.Now().UTC().Format(time.RFC3339),
	}

	rng := fmt.Sprintf("%s!A:I", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{row}}

	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	slog.InfoContext(ctx, "Report archived to sheet",
		"sheet", c.sheetName, "year", report.Year, "month", report.Month)
	return nil
}
