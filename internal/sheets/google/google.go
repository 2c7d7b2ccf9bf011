package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendigo/internal/log"
	"spendigo/internal/sheets"
)

var _ sheets.LedgerMirror = (*Client)(nil)

// Options configures the mirror client. Credentials are taken from
// CredentialsJSON, then CredentialsFile, then GOOGLE_APPLICATION_CREDENTIALS.
type Options struct {
	SpreadsheetID   string
	TabPrefix       string
	CredentialsJSON string
	CredentialsFile string
}

// Client writes per-user ledger mirrors into one spreadsheet, one tab
// per user.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	tabPrefix     string
	logger        *log.Logger
}

func New(ctx context.Context, opts Options, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentialsJSON(opts)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, opts.SpreadsheetID, opts.TabPrefix, logger), nil
}

// NewWithService wraps an already built Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, tabPrefix string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(spreadsheetID),
		tabPrefix:     tabPrefix,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func credentialsJSON(opts Options) ([]byte, error) {
	if j := strings.TrimSpace(opts.CredentialsJSON); j != "" {
		return []byte(j), nil
	}
	file := strings.TrimSpace(opts.CredentialsFile)
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// newHTTPClientWithPooling keeps connections to the Sheets API warm
// between mirror writes.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// WriteSnapshot replaces the user's tab with the rendered snapshot,
// creating the tab on first use.
func (c *Client) WriteSnapshot(ctx context.Context, snap sheets.Snapshot) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if snap.UserID == "" {
		return errors.New("snapshot without user")
	}

	tab := tabName(c.tabPrefix, snap.UserID)
	if err := c.ensureTab(ctx, tab); err != nil {
		return err
	}

	clearRange := quoteRange(tab, "A:Z")
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rows := renderRows(snap)
	writeRange := quoteRange(tab, "A1")
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", writeRange, err)
	}

	c.logger.InfoContext(ctx, "Mirrored ledger to sheet",
		log.FieldUserID, snap.UserID,
		"tab", tab,
		"sources", len(snap.Sources),
		"expenses", len(snap.Expenses))
	return nil
}

func (c *Client) ensureTab(ctx context.Context, tab string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet %s: %w", c.spreadsheetID, err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == tab {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: tab},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("create tab %q: %w", tab, err)
	}
	c.logger.InfoContext(ctx, "Created mirror tab", "tab", tab)
	return nil
}
