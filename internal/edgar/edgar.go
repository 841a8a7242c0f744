// Package edgar fetches 10-K filings from the SEC EDGAR system.
//
// EDGAR has no API key but mandates a descriptive User-Agent identifying
// the caller and caps request rates at 10 per second; the client enforces
// both.
package edgar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrNotFound indicates EDGAR has no such ticker, filing or document.
	ErrNotFound = errors.New("not found on EDGAR")

	// ErrSourceUnavailable indicates EDGAR could not be reached or
	// answered with a server error.
	ErrSourceUnavailable = errors.New("EDGAR unavailable")
)

// form10K is the only form type the client surfaces. Amended filings
// (10-K/A) are excluded; they restate rather than add fiscal years.
const form10K = "10-K"

// maxDocumentBytes caps filing downloads. The largest 10-Ks are tens of
// megabytes of inline XBRL.
const maxDocumentBytes = 100 << 20

// Company identifies an EDGAR registrant.
type Company struct {
	CIK    string // zero-padded to 10 digits
	Ticker string
	Name   string
}

// Filing describes one 10-K from a company's submission history.
type Filing struct {
	AccessionNumber string
	FormType        string
	PrimaryDocument string
	ReportDate      time.Time // fiscal period end
	FiledAt         time.Time
}

// FiscalYear returns the fiscal year the filing reports on.
func (f Filing) FiscalYear() int { return f.ReportDate.Year() }

// Config configures the EDGAR client.
type Config struct {
	// UserAgent identifies the caller per SEC fair-access policy,
	// e.g. "Example Corp research@example.com". Required.
	UserAgent string

	// FilesBaseURL and DataBaseURL default to the public SEC hosts and
	// exist so tests can point the client at an httptest server.
	FilesBaseURL string // default https://www.sec.gov
	DataBaseURL  string // default https://data.sec.gov

	// RequestsPerSecond defaults to 8, under the SEC's limit of 10.
	RequestsPerSecond float64

	Timeout time.Duration
}

// Client is a rate-limited EDGAR API client.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	httpClient   *http.Client
	userAgent    string
	filesBaseURL string
	dataBaseURL  string
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// New creates a Client. cfg.UserAgent is required.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.UserAgent) == "" {
		return nil, fmt.Errorf("user agent is required by SEC fair-access policy")
	}
	if cfg.FilesBaseURL == "" {
		cfg.FilesBaseURL = "https://www.sec.gov"
	}
	if cfg.DataBaseURL == "" {
		cfg.DataBaseURL = "https://data.sec.gov"
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		userAgent:    cfg.UserAgent,
		filesBaseURL: strings.TrimRight(cfg.FilesBaseURL, "/"),
		dataBaseURL:  strings.TrimRight(cfg.DataBaseURL, "/"),
		limiter:      rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:       logger,
	}, nil
}

// Lookup resolves a ticker symbol to its EDGAR registrant via the
// company_tickers.json index.
func (c *Client) Lookup(ctx context.Context, ticker string) (Company, error) {
	body, err := c.get(ctx, c.filesBaseURL+"/files/company_tickers.json")
	if err != nil {
		return Company{}, err
	}

	// The index is keyed by row number, not ticker.
	var index map[string]struct {
		CIK    int64  `json:"cik_str"`
		Ticker string `json:"ticker"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(body, &index); err != nil {
		return Company{}, fmt.Errorf("parsing company index: %w", err)
	}

	want := strings.ToUpper(ticker)
	for _, entry := range index {
		if strings.ToUpper(entry.Ticker) == want {
			return Company{
				CIK:    fmt.Sprintf("%010d", entry.CIK),
				Ticker: want,
				Name:   entry.Title,
			}, nil
		}
	}
	return Company{}, fmt.Errorf("%w: ticker %s", ErrNotFound, ticker)
}

// submissionsResponse mirrors the column-oriented layout of
// data.sec.gov/submissions/CIK##########.json.
type submissionsResponse struct {
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
			ReportDate      []string `json:"reportDate"`
			FilingDate      []string `json:"filingDate"`
		} `json:"recent"`
	} `json:"filings"`
}

// Recent10Ks returns up to limit of the company's most recent 10-K
// filings, newest first. Returns ErrNotFound if the company has none.
func (c *Client) Recent10Ks(ctx context.Context, cik string, limit int) ([]Filing, error) {
	body, err := c.get(ctx, c.dataBaseURL+"/submissions/CIK"+cik+".json")
	if err != nil {
		return nil, err
	}

	var subs submissionsResponse
	if err := json.Unmarshal(body, &subs); err != nil {
		return nil, fmt.Errorf("parsing submissions for CIK %s: %w", cik, err)
	}

	recent := subs.Filings.Recent
	// The columns must stay in lockstep; a truncated response is a parse
	// error, not a panic.
	if len(recent.AccessionNumber) < len(recent.Form) ||
		len(recent.PrimaryDocument) < len(recent.Form) ||
		len(recent.ReportDate) < len(recent.Form) ||
		len(recent.FilingDate) < len(recent.Form) {
		return nil, fmt.Errorf("parsing submissions for CIK %s: column lengths do not match", cik)
	}

	var filings []Filing
	for i, form := range recent.Form {
		if form != form10K {
			continue
		}
		f := Filing{
			AccessionNumber: recent.AccessionNumber[i],
			FormType:        form,
			PrimaryDocument: recent.PrimaryDocument[i],
		}
		if t, err := time.Parse("2006-01-02", recent.ReportDate[i]); err == nil {
			f.ReportDate = t
		}
		if t, err := time.Parse("2006-01-02", recent.FilingDate[i]); err == nil {
			f.FiledAt = t
		}
		filings = append(filings, f)
		if limit > 0 && len(filings) == limit {
			break
		}
	}

	if len(filings) == 0 {
		return nil, fmt.Errorf("%w: no 10-K filings for CIK %s", ErrNotFound, cik)
	}
	return filings, nil
}

// Document downloads a filing's primary document.
func (c *Client) Document(ctx context.Context, cik, accessionNumber, primaryDocument string) ([]byte, error) {
	// Archive paths use the CIK without leading zeros and the accession
	// number without dashes.
	url := fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s",
		c.filesBaseURL,
		strings.TrimLeft(cik, "0"),
		strings.ReplaceAll(accessionNumber, "-", ""),
		primaryDocument,
	)
	return c.get(ctx, url)
}

// get performs a rate-limited GET with the mandatory User-Agent header.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	// Accept-Encoding stays unset: the transport then negotiates gzip
	// itself and transparently decodes the response. Setting it manually
	// hands raw compressed bytes to the callers.
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to read
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s returned %d", ErrSourceUnavailable, url, resp.StatusCode)
	default:
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrSourceUnavailable, url, err)
	}

	c.logger.Debug("EDGAR fetch",
		"url", url,
		"bytes", len(body),
		"elapsed", time.Since(start),
	)
	return body, nil
}
