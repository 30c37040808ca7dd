package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rickgao/podsync/internal/version"
)

func TestPrintDispatch(t *testing.T) {
	tests := []struct {
		event   string
		payload string
		want    string
	}{
		{"READY", `{"user":{"id":"me"},"communities":[{"id":"c1"},{"id":"c2"}]}`, "[READY] pod=p1 user=me communities=2\n"},
		{"MESSAGE_CREATE", `{"id":"m1","channel_id":"general","author":{"id":"alice"},"content":"hi"}`, "[MESSAGE_CREATE] pod=p1 channel=general id=m1 author=alice content=\"hi\"\n"},
		{"TYPING_START", `{"channel_id":"general","user_id":"alice"}`, "[TYPING_START] pod=p1 channel=general user=alice\n"},
		{"MESSAGE_DELETE", `{"id":"m1","channel_id":"general"}`, "[MESSAGE_DELETE] pod=p1 channel=general id=m1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			var buf bytes.Buffer
			printDispatch(&buf, "p1", tt.event, []byte(tt.payload), false)
			if got := buf.String(); got != tt.want {
				t.Errorf("printDispatch() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintDispatch_Verbose(t *testing.T) {
	var buf bytes.Buffer
	printDispatch(&buf, "p1", "TYPING_START", []byte(`{"user_id":"a"}`), true)
	if got, want := buf.String(), "[TYPING_START] pod=p1 {\"user_id\":\"a\"}\n"; got != want {
		t.Errorf("printDispatch() = %q, want %q", got, want)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != version.String() {
		t.Errorf("version = %q, want %q", got, version.String())
	}
}

func TestConfigValidateCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "podsync.yaml")
	yaml := "home:\n  url: https://home.example.com\n  token: pat\npods:\n  - id: p1\n    base_url: https://p1.example.com\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"config", "validate", "--config", path})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got, want := buf.String(), "config ok: 1 pod(s), archive=false\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestConfigValidateCmd_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "podsync.yaml")
	if err := os.WriteFile(path, []byte("home:\n  url: https://home.example.com\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"config", "validate", "--config", path})

	if err := root.Execute(); err == nil {
		t.Error("Execute() error = nil, want validation error")
	}
}
