package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nestq/internal/compiler"
)

func decodeEnvelope(t *testing.T, b []byte) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(b, &env))
	return env
}

func TestPrinter_Result(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{JSON: true, Out: &buf}

	require.NoError(t, p.Result(map[string]int{"indexed": 3}))

	env := decodeEnvelope(t, buf.Bytes())
	assert.Equal(t, "ok", env.Status)
	assert.Equal(t, map[string]any{"indexed": float64(3)}, env.Data)
	assert.Nil(t, env.Error)

	buf.Reset()
	p.JSON = false
	require.NoError(t, p.Result("3 hit(s)"))
	assert.Equal(t, "3 hit(s)\n", buf.String())
}

func TestPrinter_Problem(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{JSON: true, Out: &buf}

	require.NoError(t, p.Problem(ErrCodeNotFound, "file not found", map[string]string{"file": "q.json"}))

	env := decodeEnvelope(t, buf.Bytes())
	assert.Equal(t, "error", env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeNotFound, env.Error.Code)
	assert.Equal(t, "file not found", env.Error.Message)
	assert.Equal(t, map[string]any{"file": "q.json"}, env.Error.Details)
}

func TestPrinter_ProblemText(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf}

	require.NoError(t, p.Problem(ErrCodeSearch, "search failed", "inv-1"))
	assert.Equal(t, "Error [E006]: search failed\n", buf.String())

	buf.Reset()
	p.Verbose = true
	require.NoError(t, p.Problem(ErrCodeSearch, "search failed", "inv-1"))
	assert.Equal(t, "Error [E006]: search failed\n  inv-1\n", buf.String())
}

func TestPrinter_Debugf(t *testing.T) {
	for _, verbose := range []bool{true, false} {
		t.Run(fmt.Sprint(verbose), func(t *testing.T) {
			var out, diag bytes.Buffer
			p := &Printer{JSON: true, Out: &out, Diag: &diag, Verbose: verbose}

			p.Debugf("Opened store %s", "nestq.db")

			assert.Empty(t, out.String())
			if verbose {
				assert.Equal(t, "Opened store nestq.db\n", diag.String())
			} else {
				assert.Empty(t, diag.String())
			}
		})
	}
}

func TestPrinter_CompileFailure(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{JSON: true, Out: &buf}

	err := p.compileFailure(&compiler.CompileError{
		Code:    compiler.CodeUnknownPath,
		Field:   "path",
		Value:   "nope",
		Message: "no object mapping at path",
	})
	assert.Equal(t, ExitUsage, ExitCode(err))
	assert.True(t, compiler.IsCode(err, compiler.CodeUnknownPath))

	env := decodeEnvelope(t, buf.Bytes())
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNKNOWN_PATH", env.Error.Code)
	assert.Equal(t, map[string]any{"field": "path", "value": "nope"}, env.Error.Details)
}

func TestPrinter_CompileFailurePlainError(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf}

	err := p.compileFailure(errors.New("scope stack not restored"))
	assert.Equal(t, ExitUsage, ExitCode(err))
	assert.Contains(t, buf.String(), "Error [E001]: scope stack not restored")
}

func TestExitCode(t *testing.T) {
	tests := map[string]struct {
		err  error
		want int
	}{
		"nil":             {nil, ExitOK},
		"plain":           {errors.New("boom"), ExitFailure},
		"failure":         {newFailure(ExitUsage, "bad path"), ExitUsage},
		"wrapped failure": {fmt.Errorf("run: %w", newFailure(ExitFailure, "failed")), ExitFailure},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestFailure_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := wrapFailure(ExitFailure, "index", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "index: disk full", err.Error())
	assert.Equal(t, "bad", newFailure(ExitUsage, "bad").Error())
}
