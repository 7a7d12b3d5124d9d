package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	t.Parallel()
	log := Default()
	if log == nil {
		t.Fatal("Default() returned nil")
	}
	if log.Enabled(slog.LevelDebug) {
		t.Fatal("Default() should not enable debug")
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	log := Discard()
	log.Error("dropped")
	if log.Enabled(slog.LevelError) {
		t.Fatal("Discard() should enable nothing")
	}
}

func TestJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo)
	log.Info("hello", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "hello") {
		t.Fatalf("expected 'hello' in output, got: %s", output)
	}
	if !strings.Contains(output, `"key":"value"`) {
		t.Fatalf("expected key=value in JSON output, got: %s", output)
	}
	if !strings.Contains(output, `"level":"INFO"`) {
		t.Fatalf("expected level INFO in output, got: %s", output)
	}
}

func TestJSONLevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelWarn)
	log.Info("should not appear")
	log.Debug("also should not appear")

	if buf.Len() > 0 {
		t.Fatalf("expected no output for info/debug at warn level, got: %s", buf.String())
	}

	log.Warn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("expected warn message in output, got: %s", buf.String())
	}
}

func TestText(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	Text(&buf, slog.LevelInfo).Info("copying", "tensor", "output_norm.weight")

	if !strings.Contains(buf.String(), "msg=copying tensor=output_norm.weight") {
		t.Fatalf("unexpected text output: %s", buf.String())
	}
}

func TestNewFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		want   string
	}{
		{"json", `"msg":"hi"`},
		{"JSON", `"msg":"hi"`},
		{"text", "msg=hi"},
		{"pretty", "INFO  hi"},
		{"", "INFO  hi"},
	}
	for _, tc := range tests {
		var buf bytes.Buffer
		log, err := NewFormat(tc.format, &buf, slog.LevelInfo)
		if err != nil {
			t.Fatalf("NewFormat(%q): %v", tc.format, err)
		}
		log.Info("hi")
		if !strings.Contains(buf.String(), tc.want) {
			t.Fatalf("NewFormat(%q) output %q, want it to contain %q", tc.format, buf.String(), tc.want)
		}
	}

	if _, err := NewFormat("xml", &bytes.Buffer{}, slog.LevelInfo); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestPretty(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := Pretty(&buf, slog.LevelInfo)
	log.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Fatalf("expected 'test message' in output, got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Fatalf("expected 'key=value' in output, got: %s", output)
	}
	if strings.Contains(output, "\033[") {
		t.Fatalf("expected no color codes for a non-terminal writer, got: %q", output)
	}
}

func TestPrettyColor(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	slog.New(NewPrettyHandler(&buf, nil, true)).Warn("careful")

	if !strings.Contains(buf.String(), colorYellow) {
		t.Fatalf("expected yellow level for warn, got: %q", buf.String())
	}
}

func TestPrettyDebugLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := Pretty(&buf, slog.LevelDebug)
	log.Debug("debug msg")

	if !strings.Contains(buf.String(), "debug msg") {
		t.Fatalf("expected debug message at debug level, got: %s", buf.String())
	}
}

func TestWith(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo)
	childLog := log.With("component", "test")
	childLog.Info("child message")

	output := buf.String()
	if !strings.Contains(output, `"component":"test"`) {
		t.Fatalf("expected component=test in output, got: %s", output)
	}
	if !strings.Contains(output, "child message") {
		t.Fatalf("expected 'child message' in output, got: %s", output)
	}
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo)

	ctx := WithContext(context.Background(), log)
	retrieved := FromContext(ctx)

	retrieved.Info("roundtrip test")
	if !strings.Contains(buf.String(), "roundtrip test") {
		t.Fatalf("expected message via context logger, got: %s", buf.String())
	}
}

func TestFromContextDefault(t *testing.T) {
	t.Parallel()
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext with no logger returned nil")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" info ", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tc := range tests {
		result := ParseLevel(tc.input)
		if result != tc.expected {
			t.Errorf("ParseLevel(%q): expected %v, got %v", tc.input, tc.expected, result)
		}
	}
}

func TestPrettyHandlerEnabled(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, false)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info to be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("expected warn to be enabled at warn level")
	}
}

func TestPrettyHandlerWithAttrs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil, false)

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("run", "abc")}))
	logger.Info("with attrs")

	if !strings.Contains(buf.String(), "with attrs run=abc") {
		t.Fatalf("expected 'run=abc' in output, got: %s", buf.String())
	}
}

func TestPrettyHandlerGroups(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func(h slog.Handler) slog.Handler
		want  string
	}{
		{
			name:  "single",
			build: func(h slog.Handler) slog.Handler { return h.WithGroup("tensor") },
			want:  "tensor.key=val",
		},
		{
			name:  "nested",
			build: func(h slog.Handler) slog.Handler { return h.WithGroup("a").WithGroup("b") },
			want:  "a.b.key=val",
		},
		{
			name: "attrs inside group",
			build: func(h slog.Handler) slog.Handler {
				return h.WithGroup("a").WithAttrs([]slog.Attr{slog.Int("n", 1)})
			},
			want: "a.n=1 a.key=val",
		},
	}
	for _, tc := range tests {
		var buf bytes.Buffer
		slog.New(tc.build(NewPrettyHandler(&buf, nil, false))).Info("grouped", "key", "val")
		if !strings.Contains(buf.String(), tc.want) {
			t.Fatalf("%s: expected %q in output, got: %s", tc.name, tc.want, buf.String())
		}
	}
}

func TestPrettyHandlerEmptyGroup(t *testing.T) {
	t.Parallel()
	h := NewPrettyHandler(&bytes.Buffer{}, nil, false)
	if h.WithGroup("") != slog.Handler(h) {
		t.Fatal("WithGroup empty string should return same handler")
	}
}

func TestPrettyValueFormatting(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	slog.New(NewPrettyHandler(&buf, nil, false)).Info("done",
		"msg", "hello world",
		"ratio", 3.5599999,
		"elapsed", 1500*time.Microsecond,
		"shape", []uint64{4096, 32000},
	)

	output := buf.String()
	for _, want := range []string{`msg="hello world"`, "ratio=3.56", "elapsed=2ms", "shape=[4096 32000]"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestPrettyConcurrentLines(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	base := slog.New(NewPrettyHandler(&buf, nil, false))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := base.With("worker", i)
			for range 50 {
				l.Info("tick")
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 400 {
		t.Fatalf("expected 400 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if !strings.Contains(line, "INFO  tick worker=") {
			t.Fatalf("interleaved line: %q", line)
		}
	}
}

func TestNeedsQuoting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected bool
	}{
		{"simple", false},
		{"has space", true},
		{"has\ttab", true},
		{"a=b", true},
		{`has"quote`, true},
		{"", true},
		{"blk.0.attn_q.weight", false},
	}

	for _, tc := range tests {
		result := needsQuoting(tc.input)
		if result != tc.expected {
			t.Errorf("needsQuoting(%q): expected %v, got %v", tc.input, tc.expected, result)
		}
	}
}
