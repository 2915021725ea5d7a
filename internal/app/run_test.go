package app

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	clearRequiredEnv(t)

	err := Run(&bytes.Buffer{}, []string{"serve"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialization failed")
}

// DBに接続できなければ serve はTelegramへ接続する前に失敗する。
func TestRun_Serve_UnreachableDatabase_ReturnsError(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	err := Run(&buf, []string{"serve", "--sweeper=false"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")
}

func TestRun_Sweep_UnreachableDatabase_ReturnsError(t *testing.T) {
	setTestEnv(t)

	err := Run(&bytes.Buffer{}, []string{"sweep"})
	require.Error(t, err)
}

func TestRun_MigrateDown_RejectsZeroSteps(t *testing.T) {
	setTestEnv(t)

	err := Run(&bytes.Buffer{}, []string{"migrate", "down", "--steps", "0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps")
}

func TestRunHealthcheck(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(status)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port := u.Port()

	require.NoError(t, Run(&bytes.Buffer{}, []string{"healthcheck", "--port", port}))

	status = http.StatusServiceUnavailable
	err = runHealthcheck(port)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "503"), "err = %v", err)
}
