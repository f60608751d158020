package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shipabox/shipment-saga/orchestrator-service/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "version"}, names)
	assert.NotNil(t, root.RunE)
}

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Equal(t, version+"\n", out.String())
}

func TestSetupRouter(t *testing.T) {
	cfg, err := config.Load(t.TempDir(), "missing")
	require.NoError(t, err)
	cfg.Telemetry.Enabled = false

	deps, err := config.BuildDependencies(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer deps.Close(context.Background())

	router := setupRouter(deps)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/shipments/",
		strings.NewReader(`{"customer_name":"Ada","address_city":"Springfield"}`)))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}
