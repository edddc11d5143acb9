package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestGetEnvWithDefault(t *testing.T) {
	t.Setenv("FOO", "")
	if got := GetEnv("FOO", "bar"); got != "bar" {
		t.Fatalf("expected bar, got %s", got)
	}
	t.Setenv("FOO", "baz")
	if got := GetEnv("FOO", "bar"); got != "baz" {
		t.Fatalf("expected baz, got %s", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("NUM", "")
	if got := GetEnvInt("NUM", 42); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	t.Setenv("NUM", "100")
	if got := GetEnvInt("NUM", 42); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
	t.Setenv("NUM", "notint")
	if got := GetEnvInt("NUM", 7); got != 7 {
		t.Fatalf("expected 7 on parse error, got %d", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("FLAG", "")
	if got := GetEnvBool("FLAG", true); got != true {
		t.Fatalf("expected true default, got %v", got)
	}
	t.Setenv("FLAG", "false")
	if got := GetEnvBool("FLAG", true); got != false {
		t.Fatalf("expected false, got %v", got)
	}
}

func TestGetLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	if GetLogLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level")
	}
	t.Setenv("LOG_LEVEL", "warn")
	if GetLogLevel() != logrus.WarnLevel {
		t.Fatalf("expected warn level")
	}
	t.Setenv("LOG_LEVEL", "error")
	if GetLogLevel() != logrus.ErrorLevel {
		t.Fatalf("expected error level")
	}
	t.Setenv("LOG_LEVEL", "")
	if GetLogLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level by default")
	}
}

func TestLoadEnv_NoFile(t *testing.T) {
	// Should not panic or error; just log debug
	logger := logrus.New()
	LoadEnv(logger)
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("SIM", "0.35")
	if got := GetEnvFloat("SIM", 0); got != 0.35 {
		t.Fatalf("expected 0.35, got %v", got)
	}
	t.Setenv("SIM", "high")
	if got := GetEnvFloat("SIM", 0.1); got != 0.1 {
		t.Fatalf("expected fallback 0.1, got %v", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TTL", "90m")
	if got := GetEnvDuration("TTL", time.Hour); got != 90*time.Minute {
		t.Fatalf("expected 90m, got %v", got)
	}
	t.Setenv("TTL", "soon")
	if got := GetEnvDuration("TTL", time.Hour); got != time.Hour {
		t.Fatalf("expected fallback, got %v", got)
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("ADDRS", " redis-a:6379, ,redis-b:6379 ")
	got := GetEnvList("ADDRS")
	if len(got) != 2 || got[0] != "redis-a:6379" || got[1] != "redis-b:6379" {
		t.Fatalf("unexpected list %v", got)
	}
	t.Setenv("ADDRS", "")
	if got := GetEnvList("ADDRS"); got != nil {
		t.Fatalf("expected nil for empty list, got %v", got)
	}
}
