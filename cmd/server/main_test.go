package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Lixing-Zhang/ebook-landing/internal/config"
	"github.com/Lixing-Zhang/ebook-landing/internal/dispatch"
	"github.com/Lixing-Zhang/ebook-landing/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "ebook-landing version 1.0.0\n", out.String())
}

func TestNewDispatcher_HTTP(t *testing.T) {
	cfg := config.Default().Order
	cfg.EndpointURL = "https://forms.example.com/exec"

	d, closeFn, err := newDispatcher(cfg, logger.NewWithWriter(io.Discard, "error"))
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &dispatch.HTTPDispatcher{}, d)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codes.txt")
	require.NoError(t, os.WriteFile(path, []byte("SPRING10 10\n"), 0o644))

	cfg := config.Default().Pricing
	cfg.DiscountFiles = []string{path}

	catalog, err := loadCatalog(context.Background(), cfg, logger.NewWithWriter(io.Discard, "error"))
	require.NoError(t, err)

	_, ok := catalog.Lookup(context.Background(), "spring10")
	assert.True(t, ok)
	_, ok = catalog.Lookup(context.Background(), "WIZ20")
	assert.True(t, ok)
}

func TestLoadCatalog_FilesAndURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codes.txt")
	require.NoError(t, os.WriteFile(path, []byte("FILE10 10\n"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("URL15 15\n"))
	}))
	defer srv.Close()

	cfg := config.Default().Pricing
	cfg.DiscountFiles = []string{path}
	cfg.DiscountURLs = []string{srv.URL}

	catalog, err := loadCatalog(context.Background(), cfg, logger.NewWithWriter(io.Discard, "error"))
	require.NoError(t, err)

	for _, code := range []string{"FILE10", "URL15", "WIZ20"} {
		_, ok := catalog.Lookup(context.Background(), code)
		assert.True(t, ok, code)
	}
	assert.Equal(t, 2, catalog.GetStats()["total_sources"])
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	cfg := config.Default().Pricing
	cfg.DiscountFiles = []string{filepath.Join(t.TempDir(), "missing.txt")}

	_, err := loadCatalog(context.Background(), cfg, logger.NewWithWriter(io.Discard, "error"))
	assert.Error(t, err)
}
