package config

import "fmt"

// Validate checks configuration ranges and required values.
// Returns the first violation wrapped around its sentinel error.
func (c *Config) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidEmbedderModel)
	}
	if c.EmbedderDimension <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidEmbedderDimension, c.EmbedderDimension)
	}
	if c.ChunkOverlap < 0 || c.ChunkSize <= c.ChunkOverlap {
		return fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunking, c.ChunkSize, c.ChunkOverlap)
	}
	if c.TopK < 1 || c.TopK > 50 {
		return fmt.Errorf("%w: %d", ErrInvalidTopK, c.TopK)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}
	if c.EmbedBatchSize < 1 {
		return fmt.Errorf("invalid embed batch size: %d", c.EmbedBatchSize)
	}
	if c.EmbedConcurrency < 1 {
		return fmt.Errorf("invalid embed concurrency: %d", c.EmbedConcurrency)
	}
	if c.EmbedMaxRetries < 0 {
		return fmt.Errorf("invalid embed max retries: %d", c.EmbedMaxRetries)
	}
	return nil
}

// ValidateForIngest additionally requires the EDGAR user agent, which the
// SEC mandates for programmatic access. Query-only sessions do not need it.
func (c *Config) ValidateForIngest() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.EdgarUserAgent == "" {
		return fmt.Errorf("%w: set FINSIGHT_EDGAR_USER_AGENT to \"name email\"", ErrMissingEdgarUserAgent)
	}
	return nil
}
