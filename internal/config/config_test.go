package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Recognizer.Mode != "mock" {
		t.Fatalf("expected default recognizer mode mock, got %q", cfg.Recognizer.Mode)
	}
	if !cfg.Recognizer.Continuous || !cfg.Recognizer.InterimResults {
		t.Fatal("expected continuous recognition with interim results by default")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CAPTION_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("CAPTION_BUS_USERNAME", "alice")
	t.Setenv("CAPTION_BUS_PASSWORD", "secret")
	t.Setenv("CAPTION_RECOGNIZER_MODE", "exec")
	t.Setenv("CAPTION_RECOGNIZER_COMMAND", "whisper-stream --json")
	t.Setenv("CAPTION_RECOGNIZER_LOCALE", "en-US")
	t.Setenv("CAPTION_DISPLAY_VIEWPORT_WIDTH", "1920")
	t.Setenv("CAPTION_DISPLAY_VIEWPORT_HEIGHT", "1080")
	t.Setenv("CAPTION_TIMELINE_PATH", "./tmp.db")
	t.Setenv("CAPTION_TIMELINE_RETENTION_MODE", "persistent")
	t.Setenv("CAPTION_TIMELINE_RETENTION_DAYS", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if cfg.Recognizer.Mode != "exec" {
		t.Fatalf("expected recognizer mode override, got %q", cfg.Recognizer.Mode)
	}
	if cfg.Recognizer.Command != "whisper-stream --json" {
		t.Fatalf("expected recognizer command override, got %q", cfg.Recognizer.Command)
	}
	if cfg.Recognizer.Locale != "en-US" {
		t.Fatalf("expected locale override, got %q", cfg.Recognizer.Locale)
	}
	if cfg.Display.ViewportWidth != 1920 || cfg.Display.ViewportHeight != 1080 {
		t.Fatalf("expected viewport override, got %dx%d", cfg.Display.ViewportWidth, cfg.Display.ViewportHeight)
	}
	if cfg.Timeline.Path != "./tmp.db" {
		t.Fatalf("expected timeline path override")
	}
	if cfg.Timeline.RetentionMode != "persistent" {
		t.Fatalf("expected timeline retention mode override")
	}
	if cfg.Timeline.RetentionDays != 7 {
		t.Fatalf("expected timeline retention days override")
	}
}

func TestValidateRejectsExecWithoutCommand(t *testing.T) {
	t.Setenv("CAPTION_RECOGNIZER_MODE", "exec")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for exec mode without command")
	}
}
