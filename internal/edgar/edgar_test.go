package edgar

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/finsight/internal/testutil"
)

const companyTickersJSON = `{
	"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."},
	"1": {"cik_str": 789019, "ticker": "MSFT", "title": "MICROSOFT CORP"}
}`

const submissionsJSON = `{
	"filings": {
		"recent": {
			"accessionNumber": ["0000320193-24-000123", "0000320193-24-000081", "0000320193-23-000106"],
			"form": ["10-K", "10-Q", "10-K"],
			"primaryDocument": ["aapl-20240928.htm", "aapl-20240629.htm", "aapl-20230930.htm"],
			"reportDate": ["2024-09-28", "2024-06-29", "2023-09-30"],
			"filingDate": ["2024-11-01", "2024-08-02", "2023-11-03"]
		}
	}
}`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{
		UserAgent:         "finsight test test@example.com",
		FilesBaseURL:      srv.URL,
		DataBaseURL:       srv.URL,
		RequestsPerSecond: 1000, // don't throttle tests
	}, testutil.SilentLogger())
	require.NoError(t, err)
	return client
}

func TestNewRequiresUserAgent(t *testing.T) {
	_, err := New(Config{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user agent")
}

func TestLookup(t *testing.T) {
	var gotUserAgent string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		assert.Equal(t, "/files/company_tickers.json", r.URL.Path)
		_, _ = w.Write([]byte(companyTickersJSON))
	}))

	company, err := client.Lookup(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "0000320193", company.CIK)
	assert.Equal(t, "AAPL", company.Ticker)
	assert.Equal(t, "Apple Inc.", company.Name)
	assert.Equal(t, "finsight test test@example.com", gotUserAgent)
}

func TestLookupUnknownTicker(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(companyTickersJSON))
	}))

	_, err := client.Lookup(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecent10KsFiltersAndLimits(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/submissions/CIK0000320193.json", r.URL.Path)
		_, _ = w.Write([]byte(submissionsJSON))
	}))

	filings, err := client.Recent10Ks(context.Background(), "0000320193", 0)
	require.NoError(t, err)
	require.Len(t, filings, 2) // the 10-Q is filtered out

	assert.Equal(t, "0000320193-24-000123", filings[0].AccessionNumber)
	assert.Equal(t, 2024, filings[0].FiscalYear())
	assert.Equal(t, time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC), filings[0].FiledAt)
	assert.Equal(t, 2023, filings[1].FiscalYear())

	limited, err := client.Recent10Ks(context.Background(), "0000320193", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "0000320193-24-000123", limited[0].AccessionNumber)
}

// gzipHandler compresses whenever the request advertises gzip support,
// matching data.sec.gov behavior.
func gzipHandler(t *testing.T, payload string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			_, _ = w.Write([]byte(payload))
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, err := gz.Write([]byte(payload))
		require.NoError(t, err)
		require.NoError(t, gz.Close())
	})
}

func TestLookupDecodesGzipResponse(t *testing.T) {
	client := newTestClient(t, gzipHandler(t, companyTickersJSON))

	company, err := client.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", company.Name)
}

func TestRecent10KsDecodesGzipResponse(t *testing.T) {
	client := newTestClient(t, gzipHandler(t, submissionsJSON))

	filings, err := client.Recent10Ks(context.Background(), "0000320193", 0)
	require.NoError(t, err)
	assert.Len(t, filings, 2)
}

func TestDocumentDecodesGzipResponse(t *testing.T) {
	client := newTestClient(t, gzipHandler(t, "<html>10-K content</html>"))

	body, err := client.Document(context.Background(), "0000320193", "0000320193-24-000123", "aapl-20240928.htm")
	require.NoError(t, err)
	assert.Equal(t, "<html>10-K content</html>", string(body))
}

func TestRecent10KsTruncatedColumns(t *testing.T) {
	// primaryDocument and the date columns are shorter than form.
	const truncated = `{
		"filings": {
			"recent": {
				"accessionNumber": ["0000320193-24-000123", "0000320193-23-000106"],
				"form": ["10-K", "10-K"],
				"primaryDocument": ["aapl-20240928.htm"],
				"reportDate": ["2024-09-28"],
				"filingDate": ["2024-11-01"]
			}
		}
	}`
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(truncated))
	}))

	_, err := client.Recent10Ks(context.Background(), "0000320193", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column lengths")
}

func TestRecent10KsNone(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"filings":{"recent":{"accessionNumber":[],"form":[],"primaryDocument":[],"reportDate":[],"filingDate":[]}}}`))
	}))

	_, err := client.Recent10Ks(context.Background(), "0000000001", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentPath(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Archives/edgar/data/320193/000032019324000123/aapl-20240928.htm", r.URL.Path)
		_, _ = w.Write([]byte("<html>10-K content</html>"))
	}))

	body, err := client.Document(context.Background(), "0000320193", "0000320193-24-000123", "aapl-20240928.htm")
	require.NoError(t, err)
	assert.Equal(t, "<html>10-K content</html>", string(body))
}

func TestServerErrorIsSourceUnavailable(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := client.Lookup(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestNotFoundStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.Document(context.Background(), "0000000001", "0000000001-24-000001", "missing.htm")
	assert.ErrorIs(t, err, ErrNotFound)
}
