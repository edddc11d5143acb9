package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"frameworks/coursebook/internal/chat"
	appconfig "frameworks/coursebook/internal/config"
	"frameworks/coursebook/pkg/logging"
	"frameworks/coursebook/pkg/monitoring"
	"frameworks/coursebook/pkg/version"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootRegistersCommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"serve", "ingest", "ask", "version"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("expected %q subcommand, got %v (%v)", name, cmd, err)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != version.String() {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestAskRequiresQuestion(t *testing.T) {
	if _, err := execute(t, "ask"); err == nil {
		t.Fatalf("expected error without a question")
	}
}

func TestIngestIntoMemoryStore(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("EMBEDDING_PROVIDER", "local")
	t.Setenv("EMBEDDING_DIMENSIONS", "64")
	t.Setenv("LOG_LEVEL", "error")

	dir := t.TempDir()
	doc := "Course Title: Go Basics\nCourse Link: https://example.com/go\nCourse Instructor: Gopher\n\nLesson 1: Goroutines\nGoroutines are cheap threads."
	if err := os.WriteFile(filepath.Join(dir, "go.txt"), []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.pdf"), []byte("skip"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := execute(t, "ingest", "--dir", dir)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.Contains(out, "Added 1 courses with 1 chunks") {
		t.Fatalf("unexpected output %q", out)
	}

	if _, err := execute(t, "ingest", "--dir", filepath.Join(dir, "missing")); err == nil {
		t.Fatalf("expected error for missing folder")
	}
}

func TestIngestSingleFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("EMBEDDING_PROVIDER", "local")
	t.Setenv("EMBEDDING_DIMENSIONS", "64")
	t.Setenv("LOG_LEVEL", "error")

	path := filepath.Join(t.TempDir(), "mcp.md")
	doc := "Course Title: Intro to MCP\nCourse Link: https://example.com/mcp\nCourse Instructor: Ada\n\nLesson 1: Servers\nServers expose tools. Clients call them."
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := execute(t, "ingest", "--file", path)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.Contains(out, `Added "Intro to MCP" with 1 chunks`) {
		t.Fatalf("unexpected output %q", out)
	}

	if _, err := execute(t, "ingest", "--file", path+".missing"); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := execute(t, "ingest", "--file", path, "--clear"); err == nil {
		t.Fatalf("expected --file and --clear to be rejected together")
	}
}

func TestBuildSessionsFallsBackToMemory(t *testing.T) {
	logger := logging.NewLogger()
	logger.SetOutput(&bytes.Buffer{})

	for name, cfg := range map[string]appconfig.Config{
		"unset":       {MaxHistory: 2},
		"addrs":       {MaxHistory: 2, RedisMode: "single", RedisAddrs: []string{"127.0.0.1:1"}},
		"url":         {MaxHistory: 2, RedisURL: "redis://127.0.0.1:1/0"},
		"invalid url": {MaxHistory: 2, RedisURL: "http://not-redis"},
	} {
		t.Run(name, func(t *testing.T) {
			a := &app{cfg: cfg, logger: logger, health: monitoring.NewHealthChecker("coursebook", "test")}
			sessions := a.buildSessions(context.Background())
			if _, ok := sessions.(*chat.MemorySessions); !ok {
				t.Fatalf("expected in-memory sessions, got %T", sessions)
			}
			if len(a.closers) != 0 {
				t.Fatalf("expected nothing to close, got %d closers", len(a.closers))
			}
		})
	}
}

func TestBuildSessionsUsesRedisURL(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := logging.NewLogger()
	logger.SetOutput(&bytes.Buffer{})

	a := &app{
		cfg:    appconfig.Config{MaxHistory: 2, RedisURL: "redis://" + mr.Addr() + "/0"},
		logger: logger,
		health: monitoring.NewHealthChecker("coursebook", "test"),
	}
	defer a.Close()

	sessions := a.buildSessions(context.Background())
	if _, ok := sessions.(*chat.RedisSessions); !ok {
		t.Fatalf("expected redis sessions, got %T", sessions)
	}
	if len(a.closers) != 1 {
		t.Fatalf("expected the redis client to be closed on exit, got %d closers", len(a.closers))
	}
}

func TestOllamaRoot(t *testing.T) {
	for in, want := range map[string]string{
		"":                             "http://localhost:11434/",
		"http://gpu-box:11434/v1":      "http://gpu-box:11434/",
		"http://gpu-box:11434/v1/":     "http://gpu-box:11434/",
		"https://ollama.internal/base": "https://ollama.internal/base/",
	} {
		if got := ollamaRoot(in); got != want {
			t.Fatalf("ollamaRoot(%q) = %q, want %q", in, got, want)
		}
	}
}
