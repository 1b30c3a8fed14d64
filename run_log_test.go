package zegemm

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunResult(t *testing.T) {
	pass := Comparison{Pass: true, MaxRelError: 1e-7, Row: -1, Col: -1}
	r := NewRunResult("ok", 16, 16, 16, TilesFromGroupID, time.Millisecond, pass, nil)
	assert.Equal(t, RunPass, r.Status)
	assert.Equal(t, "group-id", r.Strategy)
	assert.InDelta(t, 2*16*16*16/1e-3/1e9, r.GFLOPS, 1e-9)

	fail := Comparison{Row: 3, Col: 4, Got: 2, Want: 1, RelError: 0.5}
	r = NewRunResult("bad", 16, 16, 16, TilesFromHostLoop, time.Millisecond, fail, nil)
	assert.Equal(t, RunFail, r.Status)
	assert.Equal(t, []int{3, 4}, r.FailedAt)
	assert.Contains(t, r.Error, "FAIL: [3, 4]")

	r = NewRunResult("slow", 16, 16, 16, TilesFromHostLoop, time.Second, pass, newError(ErrTimeout, "Execute", "late"))
	assert.Equal(t, RunTimeout, r.Status)
	assert.Zero(t, r.GFLOPS)

	r = NewRunResult("lost", 16, 16, 16, TilesFromHostLoop, time.Second, pass, newError(ErrDeviceLost, "Execute", "gone"))
	assert.Equal(t, RunError, r.Status)
}

func TestRunLogPersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l, err := NewRunLog(dir, "sgemm")
	require.NoError(t, err)
	require.NotEmpty(t, l.File())

	pass := Comparison{Pass: true}
	require.NoError(t, l.Record(NewRunResult("run 1", 16, 16, 16, TilesFromGroupID, time.Millisecond, pass, nil)))
	require.NoError(t, l.Record(NewRunResult("run 2", 32, 16, 16, TilesFromGroupID, time.Millisecond, Comparison{Row: 1}, nil)))

	loaded, err := LoadRunLog(l.File())
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "run 2", loaded[1].Name)
	assert.Equal(t, 32, loaded[1].M)
	assert.False(t, loaded[0].Timestamp.IsZero())

	var buf bytes.Buffer
	WriteSummary(&buf, loaded)
	assert.Contains(t, buf.String(), "Total: 2 | Passed: 1 | Failed: 1 | Timeout: 0 | Error: 0")
}

func TestRunLogInMemory(t *testing.T) {
	l, err := NewRunLog("", "sgemm")
	require.NoError(t, err)
	assert.Empty(t, l.File())
	require.NoError(t, l.Record(RunResult{Name: "x", Status: RunPass}))
	assert.Len(t, l.Results(), 1)

	_, err = LoadRunLog(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
