package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/edgar"
	"github.com/finsight/finsight/internal/testutil"
)

func TestNewRequiresConfig(t *testing.T) {
	appInstance, cleanup, err := New(context.Background(), nil, testutil.SilentLogger())

	require.Error(t, err)
	assert.Nil(t, appInstance)
	assert.Nil(t, cleanup)
}

func TestFilingSourceWithoutUserAgent(t *testing.T) {
	source, err := newFilingSource(&config.Config{}, testutil.SilentLogger())
	require.NoError(t, err)

	_, err = source.Lookup(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FINSIGHT_EDGAR_USER_AGENT")

	_, err = source.Recent10Ks(context.Background(), "0000320193", 2)
	require.Error(t, err)

	_, err = source.Document(context.Background(), "0000320193", "0000320193-23-000106", "aapl-20230930.htm")
	require.Error(t, err)
}

func TestFilingSourceWithUserAgent(t *testing.T) {
	cfg := &config.Config{
		EdgarUserAgent: "finsight test@example.com",
		EdgarTimeoutMs: 30000,
	}

	source, err := newFilingSource(cfg, testutil.SilentLogger())
	require.NoError(t, err)
	assert.IsType(t, &edgar.Client{}, source)
}
