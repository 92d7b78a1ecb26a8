package main

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/sells-group/analysis-cli/internal/cache"
	"github.com/sells-group/analysis-cli/internal/config"
	"github.com/sells-group/analysis-cli/internal/sample"
	"github.com/sells-group/analysis-cli/internal/scan"
)

func testEnv(t *testing.T) *analysisEnv {
	t.Helper()
	cfg = &config.Config{}
	cfg.Analysis.Luminosity = 1

	path := filepath.Join(t.TempDir(), "mc.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE nominal (event_id INTEGER PRIMARY KEY, pt REAL, mcweight REAL);
		CREATE TABLE metadata (key TEXT, value REAL);
		INSERT INTO metadata VALUES ('sum_of_weights', 10);
	`)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err = db.Exec(`INSERT INTO nominal VALUES (?, ?, 1.0)`, i, float64(i*10))
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	eng := scan.NewSQLite(false)
	s := sample.New("mc", eng)
	s.Inputs = []string{path}
	s.SetCache(cache.NewMemory())

	reg := sample.NewRegistry()
	reg.Register(s)
	env := &analysisEnv{Engine: eng, Registry: reg}
	t.Cleanup(env.Close)
	return env
}

func TestServeHealth(t *testing.T) {
	r := newRouter(testEnv(t))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServeYield(t *testing.T) {
	r := newRouter(testEnv(t))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/yield?target=mc&cut=pt+%3E%3D+50", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Target      string  `json:"target"`
		Yield       float64 `json:"yield"`
		Uncertainty float64 `json:"uncertainty"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "mc", body.Target)
	// 5 of 10 rows pass, weight 1 each, normalized by sumw 10.
	assert.InDelta(t, 0.5, body.Yield, 1e-9)
}

func TestServeYield_UnknownTarget(t *testing.T) {
	r := newRouter(testEnv(t))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/yield?target=nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeHistogram(t *testing.T) {
	r := newRouter(testEnv(t))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/histogram?target=mc&var=pt:10:0:100", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Name  string    `json:"name"`
		Edges []float64 `json:"edges"`
		SumW  []float64 `json:"sumw"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "pt", body.Name)
	assert.Len(t, body.Edges, 11)
}

func TestServeHistogram_BadVariable(t *testing.T) {
	r := newRouter(testEnv(t))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/histogram?target=mc&var=oops", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseVariable(t *testing.T) {
	v, err := parseVariable("met:40:0:400")
	require.NoError(t, err)
	assert.Equal(t, "met", v.Name)
	assert.Equal(t, "met", v.Expr)
	assert.Equal(t, 40, v.Binning.NBins)
	assert.Equal(t, 400.0, v.Binning.High)

	v, err = parseVariable("ht:10:0:1000:pt1 + pt2")
	require.NoError(t, err)
	assert.Equal(t, "pt1 + pt2", v.Expr)

	_, err = parseVariable("met:40:0")
	assert.Error(t, err)
	_, err = parseVariable("met:x:0:400")
	assert.Error(t, err)
}
