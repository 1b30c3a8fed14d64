package zegemm

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// Run outcomes recorded in a RunLog.
const (
	RunPass    = "pass"
	RunFail    = "fail"
	RunTimeout = "timeout"
	RunError   = "error"
)

// RunResult captures one offload and its verification.
type RunResult struct {
	Name        string        `json:"name"`
	Status      string        `json:"status"`
	M           int           `json:"m"`
	N           int           `json:"n"`
	K           int           `json:"k"`
	Strategy    string        `json:"strategy"`
	Duration    time.Duration `json:"duration"`
	GFLOPS      float64       `json:"gflops,omitempty"`
	MaxRelError float64       `json:"max_rel_error"`
	MaxAbsError float64       `json:"max_abs_error"`
	FailedAt    []int         `json:"failed_at,omitempty"`
	Error       string        `json:"error,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// NewRunResult builds the record of an offload of m x n x k that took d,
// classifying it from the offload error and the comparison against the
// reference. cmp is ignored when err is not nil.
func NewRunResult(name string, m, n, k int, strategy TileStrategy, d time.Duration, cmp Comparison, err error) RunResult {
	r := RunResult{Name: name, M: m, N: n, K: k, Strategy: strategy.String(), Duration: d}
	switch {
	case errors.Is(err, ErrTimeout):
		r.Status, r.Error = RunTimeout, err.Error()
	case err != nil:
		r.Status, r.Error = RunError, err.Error()
	case !cmp.Pass:
		r.Status = RunFail
		r.FailedAt = []int{cmp.Row, cmp.Col}
		r.Error = cmp.String()
	default:
		r.Status = RunPass
	}
	if err == nil {
		r.MaxRelError, r.MaxAbsError = cmp.MaxRelError, cmp.MaxAbsError
		if d > 0 {
			r.GFLOPS = 2 * float64(m) * float64(n) * float64(k) / d.Seconds() / 1e9
		}
	}
	return r
}

// RunLog collects run results and, when given a directory, mirrors them to
// a JSON file there after every record.
type RunLog struct {
	mu      sync.Mutex
	results []RunResult
	file    string
}

// NewRunLog starts a log for a session. An empty dir keeps results in
// memory only.
func NewRunLog(dir, session string) (*RunLog, error) {
	l := &RunLog{}
	if dir == "" {
		return l, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create log directory")
	}
	timestamp := time.Now().Format("20060102_150405")
	l.file = filepath.Join(dir, fmt.Sprintf("%s_%s.json", session, timestamp))
	return l, l.flush()
}

// File returns the path results are written to, or "" for in-memory logs.
func (l *RunLog) File() string {
	return l.file
}

// Record appends r and flushes the log to disk immediately.
func (l *RunLog) Record(r RunResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	l.results = append(l.results, r)
	return l.flush()
}

// Results returns a copy of the recorded results.
func (l *RunLog) Results() []RunResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]RunResult(nil), l.results...)
}

func (l *RunLog) flush() error {
	if l.file == "" {
		return nil
	}
	data, err := json.MarshalIndent(l.results, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal results")
	}
	return errors.Wrapf(os.WriteFile(l.file, data, 0644), "failed to write %s", l.file)
}

// LoadRunLog reads results written by a RunLog.
func LoadRunLog(path string) ([]RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var results []RunResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return results, nil
}

// WriteSummary prints one line per result and the totals.
func WriteSummary(w io.Writer, results []RunResult) {
	fmt.Fprintln(w, strings.Repeat("=", 62))
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Status]++
		switch r.Status {
		case RunPass:
			fmt.Fprintf(w, "✓ %-24s %12s %8.2f GFLOPS  max rel %.2e\n",
				r.Name, r.Duration.Round(time.Microsecond), r.GFLOPS, r.MaxRelError)
		case RunFail:
			fmt.Fprintf(w, "✗ %-24s %s\n", r.Name, r.Error)
		case RunTimeout:
			fmt.Fprintf(w, "⏱ %-24s TIMEOUT after %v\n", r.Name, r.Duration)
		default:
			fmt.Fprintf(w, "! %-24s ERROR: %s\n", r.Name, r.Error)
		}
	}
	fmt.Fprintln(w, strings.Repeat("=", 62))
	fmt.Fprintf(w, "Total: %s | Passed: %d | Failed: %d | Timeout: %d | Error: %d\n",
		humanize.Comma(int64(len(results))), counts[RunPass], counts[RunFail], counts[RunTimeout], counts[RunError])
}
