package di

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainconfig "graphengine/domain/config"
	"graphengine/infrastructure/config"
	"graphengine/infrastructure/host"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Environment = "test"
	cfg.LogLevel = "error"
	cfg.JournalPath = filepath.Join(t.TempDir(), "journal.db")
	cfg.RateLimit = 0
	cfg.Domain = domainconfig.LoadDomainConfig(cfg.Environment)
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestInitializeContainer_JournalsBatches(t *testing.T) {
	cfg := testConfig(t)

	c, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	require.NotNil(t, c.Journal)
	require.NotNil(t, c.JournalDB)
	assert.Len(t, c.Library.Assets(), 4)
	assert.Equal(t, []string{"journal"}, c.Plugins.ListPlugins())

	handler := c.HTTP.Setup()
	do := func(method, target, body string) *httptest.ResponseRecorder {
		var r *http.Request
		if body == "" {
			r = httptest.NewRequest(method, target, nil)
		} else {
			r = httptest.NewRequest(method, target, strings.NewReader(body))
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	w := do("GET", "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do("POST", "/api/v1/graphs/commands/batch",
		`{"graph_ref": {"asset_path": "`+host.DemoBlueprint+`"}, "nodes": [{"ref": "a", "type": "Branch"}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do("GET", "/api/v1/graphs/batches?asset_path="+host.DemoBlueprint, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Data []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, 1)

	w = do("GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "graphengine_http_requests_total")
}

func TestInitializeContainer_WithoutJournal(t *testing.T) {
	cfg := testConfig(t)
	cfg.JournalPath = ""
	cfg.EnableMetrics = false
	cfg.SeedDemoAssets = false

	c, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	assert.Nil(t, c.Journal)
	assert.Nil(t, c.JournalDB)
	assert.Nil(t, c.Metrics)
	assert.Empty(t, c.Library.Assets())
	assert.Empty(t, c.Plugins.ListPlugins())

	_, ok := c.Plugins.GetPlugin("journal")
	assert.False(t, ok)
}

func TestProvideRateLimiter(t *testing.T) {
	cfg := config.Defaults()
	assert.NotNil(t, ProvideRateLimiter(cfg))

	cfg.RateLimit = 0
	assert.Nil(t, ProvideRateLimiter(cfg))
}
