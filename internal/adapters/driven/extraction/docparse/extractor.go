// Package docparse provides a PDF extraction adapter backed by a docparse
// sidecar service (a PyMuPDF-based HTTP extractor).
package docparse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.PDFExtractor = (*Extractor)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:8077"
	DefaultTimeout = 120 * time.Second

	// defaultRequestRate throttles extraction calls so a corpus re-run
	// does not overwhelm the sidecar.
	defaultRequestRate = 2.0
)

// Config holds configuration for the docparse extractor.
type Config struct {
	// BaseURL is the sidecar address (default: http://localhost:8077).
	BaseURL string

	// Timeout is the per-request timeout (default: 120s).
	Timeout time.Duration
}

// Extractor calls the docparse sidecar to turn PDF bytes into raw blocks.
type Extractor struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// extractResponse is the sidecar response format.
type extractResponse struct {
	PageCount int `json:"page_count"`
	Blocks    []struct {
		Text     string    `json:"text"`
		Page     int       `json:"page"`
		FontSize float64   `json:"font_size"`
		Bold     bool      `json:"is_bold"`
		BBox     []float64 `json:"bbox,omitempty"`
	} `json:"blocks"`
	Assets []struct {
		Page      int    `json:"page"`
		Kind      string `json:"kind"`
		LocalPath string `json:"local_path"`
	} `json:"assets"`
	Error string `json:"error,omitempty"`
}

// New creates a docparse extractor.
func New(cfg Config) *Extractor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Extractor{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		limiter: rate.NewLimiter(rate.Limit(defaultRequestRate), 1),
	}
}

// Extract parses the PDF and returns its raw blocks in document order.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*driven.ExtractionResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty PDF", domain.ErrExtraction)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/extract", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := e.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: extraction: %v", domain.ErrCapabilityTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed extractResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrExtraction, parsed.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: docparse returned status %d: %s", domain.ErrExtraction, resp.StatusCode, string(body))
	}

	result := &driven.ExtractionResult{
		PageCount: parsed.PageCount,
		Blocks:    make([]driven.RawBlock, 0, len(parsed.Blocks)),
		Assets:    make([]driven.RawAsset, 0, len(parsed.Assets)),
	}
	for _, b := range parsed.Blocks {
		result.Blocks = append(result.Blocks, driven.RawBlock{
			Text:     b.Text,
			Page:     b.Page,
			FontSize: b.FontSize,
			Bold:     b.Bold,
			BBox:     b.BBox,
		})
	}
	for _, a := range parsed.Assets {
		kind := domain.AssetFigure
		if a.Kind == string(domain.AssetTable) {
			kind = domain.AssetTable
		}
		result.Assets = append(result.Assets, driven.RawAsset{
			Page:      a.Page,
			Kind:      kind,
			LocalPath: a.LocalPath,
		})
	}
	return result, nil
}

// Ping validates the sidecar is reachable.
func (e *Extractor) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("docparse: failed to create ping request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("docparse: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("docparse: sidecar returned status %d", resp.StatusCode)
	}
	return nil
}

// isTimeout reports whether err is a deadline or network timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
