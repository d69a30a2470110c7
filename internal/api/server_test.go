package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/isolated-regex/internal/config"
	"github.com/raaihank/isolated-regex/internal/hook"
	"github.com/raaihank/isolated-regex/internal/host"
	"github.com/raaihank/isolated-regex/internal/logger"
	"github.com/raaihank/isolated-regex/internal/rule"
	"github.com/raaihank/isolated-regex/internal/settings"
	"github.com/raaihank/isolated-regex/internal/store"
	"github.com/raaihank/isolated-regex/internal/substitute"
)

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *host.Session) {
	t.Helper()

	session, err := host.NewSession([]host.Character{
		{Avatar: "seraphina.png", Name: "Seraphina"},
		{Avatar: "aqua.png", Name: "Aqua Marine"},
	}, zap.NewNop())
	require.NoError(t, err)

	m, err := settings.NewManager(t.Context(), settings.NewMemoryBackend(nil), time.Hour, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close(t.Context()) })

	executor, err := substitute.New(substitute.DefaultConfig(), zap.NewNop())
	require.NoError(t, err)

	rules := store.New(session, m, zap.NewNop())
	return New(cfg, logger.NewNop(), Deps{
		Store:     rules,
		Session:   session,
		Processor: hook.New(rules, executor),
		Executor:  executor,
	}), session
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthAndInfo(t *testing.T) {
	s, _ := newTestServer(t, config.GetDefaults())

	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])

	rec = do(t, s, http.MethodGet, "/info", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	info := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "isolated-regex", info["name"])
	assert.EqualValues(t, 2, info["characters"])
}

func TestPanel(t *testing.T) {
	s, _ := newTestServer(t, config.GetDefaults())

	rec := do(t, s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="isolated_pattern"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, config.GetDefaults())

	rec := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "isolated_regex_")
}

func TestCharacters(t *testing.T) {
	s, _ := newTestServer(t, config.GetDefaults())

	rec := do(t, s, http.MethodGet, "/characters", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[charactersResponse](t, rec)
	assert.Len(t, resp.Characters, 2)
	assert.Empty(t, resp.Active)

	rec = do(t, s, http.MethodPost, "/characters/active", `{"ref":"1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "aqua.png", decode[host.Character](t, rec).Avatar)

	rec = do(t, s, http.MethodPost, "/characters/active", `{"ref":"nobody.png"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/characters/active", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRulesWithoutActiveCharacter(t *testing.T) {
	s, _ := newTestServer(t, config.GetDefaults())

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/rules/active", ""},
		{http.MethodPut, "/rules/active", `{"pattern":"a"}`},
		{http.MethodPost, "/rules/active/import", `{"pattern":"a"}`},
		{http.MethodGet, "/rules/active/export", ""},
	} {
		rec := do(t, s, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestGetRuleMaterializesDefault(t *testing.T) {
	s, _ := newTestServer(t, config.GetDefaults())

	rec := do(t, s, http.MethodGet, "/rules/seraphina.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ruleResponse](t, rec)
	assert.Equal(t, "seraphina.png", resp.Avatar)
	assert.Equal(t, *rule.Default(), resp.Rule)
}

func TestPutRuleAndProcess(t *testing.T) {
	s, session := newTestServer(t, config.GetDefaults())
	_, err := session.Select("seraphina.png")
	require.NoError(t, err)

	rec := do(t, s, http.MethodPut, "/rules/active", `{"enabled":true,"pattern":"a+","replacement":"b","flags":"g"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ruleResponse](t, rec)
	assert.Equal(t, rule.DefaultScope(), resp.Rule.Scope)
	assert.Empty(t, resp.PatternError)

	rec = do(t, s, http.MethodPost, "/process/ai_output", `{"text":"aaa caa"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "b cb", decode[textBody](t, rec).Text)

	rec = do(t, s, http.MethodPost, "/process/user_input", `{"text":"aaa caa"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "aaa caa", decode[textBody](t, rec).Text)

	rec = do(t, s, http.MethodPost, "/process/system", `{"text":"aaa"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPutRuleReportsPatternError(t *testing.T) {
	s, _ := newTestServer(t, config.GetDefaults())

	rec := do(t, s, http.MethodPut, "/rules/aqua.png", `{"enabled":true,"pattern":"(","flags":"g"}`)
	require.Equal(t, http.StatusOK, rec.Code, "invalid patterns are stored as written")
	assert.NotEmpty(t, decode[ruleResponse](t, rec).PatternError)

	rec = do(t, s, http.MethodPut, "/rules/aqua.png", `{"scope":["system"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportRule(t *testing.T) {
	s, _ := newTestServer(t, config.GetDefaults())

	rec := do(t, s, http.MethodPut, "/rules/aqua.png", `{"enabled":true,"pattern":"x","replacement":"y","flags":"gi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/rules/aqua.png/import", `{"regex":"foo"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[ruleResponse](t, rec).Rule
	assert.Equal(t, "foo", got.Pattern)
	assert.Equal(t, "y", got.Replacement, "fields missing from the file are kept")
	assert.Equal(t, "gi", got.Flags)

	rec = do(t, s, http.MethodPost, "/rules/aqua.png/import", `{"replacement":"z"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/rules/aqua.png/import", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/rules/aqua.png", "")
	assert.Equal(t, "foo", decode[ruleResponse](t, rec).Rule.Pattern, "failed imports leave the record untouched")
}

func TestExportRule(t *testing.T) {
	s, _ := newTestServer(t, config.GetDefaults())

	rec := do(t, s, http.MethodPut, "/rules/aqua.png", `{"enabled":true,"pattern":"a+","replacement":"b","flags":"g"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/rules/aqua.png/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="isolated_regex_Aqua_Marine.json"`, rec.Header().Get("Content-Disposition"))

	patch, err := rule.Deserialize(rec.Body.Bytes())
	require.NoError(t, err)
	require.NotNil(t, patch.Pattern)
	assert.Equal(t, "a+", *patch.Pattern)
}

func TestRateLimit(t *testing.T) {
	cfg := config.GetDefaults()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 2}
	s, _ := newTestServer(t, cfg)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/characters", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/characters", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, s, http.MethodGet, "/characters", "").Code)

	// health checks are not limited
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code)

	s.ApplyConfig(&config.Config{RateLimit: config.RateLimitConfig{Enabled: false}})
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/characters", "").Code)
}

func TestRateLimiterCleanup(t *testing.T) {
	l := NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 1})
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))

	assert.Equal(t, 2, l.CleanupOldClients(time.Now().Add(time.Minute)))
	assert.True(t, l.Allow("10.0.0.1"), "a fresh bucket starts full")
}

func TestRequestIDHeader(t *testing.T) {
	s, _ := newTestServer(t, config.GetDefaults())

	req := httptest.NewRequest(http.MethodGet, "/characters", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
