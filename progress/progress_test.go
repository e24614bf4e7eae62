package progress

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct{ events []Event }

func (r *recorder) Emit(e Event) { r.events = append(r.events, e) }

func TestMultiAndWithRun(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	s := WithRun(Multi{a, nil, b}, "run-1")
	s.Emit(Event{Kind: Node, Node: 3})
	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, "run-1", a.events[0].RunID)
	assert.Equal(t, 3, b.events[0].Node)
}

func TestParseVerbosity(t *testing.T) {
	v, err := ParseVerbosity("Detailed")
	require.NoError(t, err)
	assert.Equal(t, Detailed, v)
	v, err = ParseVerbosity("4")
	require.NoError(t, err)
	assert.Equal(t, Normal, v)
	_, err = ParseVerbosity("loud")
	assert.Error(t, err)
	assert.Equal(t, "full", Full.String())
}

func TestSlogSinkFiltersByVerbosity(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewSlogSink(logger, Normal, 0)

	s.Emit(Event{Kind: Iteration, Iteration: 1})
	s.Emit(Event{Kind: Node, Node: 1})
	s.Emit(Event{Kind: Incumbent, Node: 2, Objective: 4})
	s.Emit(Event{Kind: Done, Status: "OPTIMAL", RunID: "abc"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "solve finished", rec["msg"])
	assert.Equal(t, "OPTIMAL", rec["status"])
	assert.Equal(t, "abc", rec["run_id"])
}

func TestSlogSinkThrottlesIterations(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewSlogSink(logger, Full, 0.001)
	for i := 0; i < 50; i++ {
		s.Emit(Event{Kind: Iteration, Iteration: i})
	}
	assert.Equal(t, 1, strings.Count(buf.String(), "msg=iteration"))
}
