package discount

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/shopspring/decimal"
)

var (
	ErrNoSources     = errors.New("no discount sources provided")
	ErrMalformedLine = errors.New("malformed discount line")
)

// falsePositiveRate of the lookup pre-screen
const falsePositiveRate = 0.001

// Catalog maps discount codes to the amount they take off the base price.
// Codes are stored upper-case; lookups upper-case the input without trimming it.
type Catalog struct {
	mu      sync.RWMutex
	builtin map[string]decimal.Decimal
	codes   map[string]decimal.Decimal
	filter  *bloom.BloomFilter
	sources []sourceStats
}

type sourceStats struct {
	name  string
	codes int
}

// sourceLoadResult holds the result of loading a single source
type sourceLoadResult struct {
	index int
	codes map[string]decimal.Decimal
	err   error
}

// NewCatalog creates a catalog holding the built-in codes
func NewCatalog(builtin map[string]int64) *Catalog {
	codes := make(map[string]decimal.Decimal, len(builtin))
	for code, amount := range builtin {
		codes[strings.ToUpper(code)] = decimal.NewFromInt(amount)
	}

	c := &Catalog{builtin: codes}
	c.install(nil, nil)
	return c
}

// LoadFromFiles loads extra codes from local files concurrently.
// Returns error if any file fails to load; the catalog is left unchanged in that case.
func (c *Catalog) LoadFromFiles(ctx context.Context, paths []string) error {
	return c.load(ctx, paths, func(ctx context.Context, path string) (map[string]decimal.Decimal, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()
		return parseCodes(f)
	})
}

// LoadFromURLs loads extra codes from (optionally gzipped) URLs concurrently
func (c *Catalog) LoadFromURLs(ctx context.Context, urls []string) error {
	client := &http.Client{Timeout: 2 * time.Minute}
	return c.load(ctx, urls, func(ctx context.Context, url string) (map[string]decimal.Decimal, error) {
		return loadFromURL(ctx, client, url)
	})
}

func (c *Catalog) load(ctx context.Context, sources []string, loadOne func(context.Context, string) (map[string]decimal.Decimal, error)) error {
	if len(sources) == 0 {
		return ErrNoSources
	}

	resultChan := make(chan sourceLoadResult, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(index int, source string) {
			defer wg.Done()

			codes, err := loadOne(ctx, source)
			resultChan <- sourceLoadResult{index: index, codes: codes, err: err}
		}(i, src)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// Collect results maintaining order
	results := make([]sourceLoadResult, len(sources))
	for result := range resultChan {
		results[result.index] = result
	}

	for i, result := range results {
		if result.err != nil {
			return fmt.Errorf("failed to load discount source %d (%s): %w", i+1, sources[i], result.err)
		}
	}

	loaded := make([]map[string]decimal.Decimal, len(results))
	for i, result := range results {
		loaded[i] = result.codes
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.install(sources, loaded)
	return nil
}

// install merges loaded sources into the code table and rebuilds the pre-screen.
// Later sources override earlier ones and earlier loads.
// Callers must hold the write lock, except during construction.
func (c *Catalog) install(names []string, loaded []map[string]decimal.Decimal) {
	base := c.codes
	if base == nil {
		base = c.builtin
	}
	codes := make(map[string]decimal.Decimal, len(base))
	for code, amount := range base {
		codes[code] = amount
	}

	sources := append([]sourceStats(nil), c.sources...)
	for i, set := range loaded {
		for code, amount := range set {
			codes[code] = amount
		}
		sources = append(sources, sourceStats{name: names[i], codes: len(set)})
	}

	n := uint(len(codes))
	if n == 0 {
		n = 1
	}
	filter := bloom.NewWithEstimates(n, falsePositiveRate)
	for code := range codes {
		filter.AddString(code)
	}

	c.codes = codes
	c.filter = filter
	c.sources = sources
}

// loadFromURL downloads and parses a discount file from a URL
func loadFromURL(ctx context.Context, client *http.Client, url string) (map[string]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return parseCodes(resp.Body)
}

// parseCodes reads "CODE AMOUNT" lines, gunzipping the stream when it starts with the gzip magic.
// Blank lines and lines starting with # are skipped; CODE:AMOUNT and CODE,AMOUNT are accepted too.
func parseCodes(r io.Reader) (map[string]decimal.Decimal, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		return scanCodes(gz)
	}
	return scanCodes(br)
}

func scanCodes(r io.Reader) (map[string]decimal.Decimal, error) {
	codes := make(map[string]decimal.Decimal)
	scanner := bufio.NewScanner(r)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.FieldsFunc(line, func(r rune) bool {
			return r == ' ' || r == '\t' || r == ':' || r == ','
		})
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w at line %d: %q", ErrMalformedLine, lineNo, line)
		}

		amount, err := decimal.NewFromString(parts[1])
		if err != nil || !amount.IsPositive() {
			return nil, fmt.Errorf("%w at line %d: bad amount %q", ErrMalformedLine, lineNo, parts[1])
		}
		codes[strings.ToUpper(parts[0])] = amount
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return codes, nil
}

// Lookup returns the discount amount for a code
func (c *Catalog) Lookup(ctx context.Context, code string) (decimal.Decimal, bool) {
	normalized := strings.ToUpper(code)
	if normalized == "" {
		return decimal.Zero, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.filter.TestString(normalized) {
		return decimal.Zero, false
	}

	amount, ok := c.codes[normalized]
	return amount, ok
}

// GetStats returns statistics about loaded codes
func (c *Catalog) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make(map[string]interface{})
	stats["builtin_codes"] = len(c.builtin)
	stats["total_codes"] = len(c.codes)
	stats["total_sources"] = len(c.sources)

	names := make([]string, len(c.sources))
	sizes := make([]int, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.name
		sizes[i] = s.codes
	}
	stats["source_names"] = names
	stats["source_sizes"] = sizes

	return stats
}
