package cli

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServe_StartsAndStops(t *testing.T) {
	docs, err := os.ReadFile("testdata/docs.json")
	require.NoError(t, err)

	opts := &ServeOptions{
		RootOptions: &RootOptions{Format: "text"},
		StoreOptions: StoreOptions{
			MappingPath: testMappingPath,
			DBPath:      filepath.Join(t.TempDir(), "serve.db"),
		},
		Port: 0,
	}
	cmd := NewServeCommand(opts.RootOptions)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, opts, cmd, ready) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}
	base := "http://" + strings.Replace(addr, "[::]", "127.0.0.1", 1)

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(base+"/_index", "application/json", bytes.NewReader(docs))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
