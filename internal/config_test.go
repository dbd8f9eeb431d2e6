package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/smartmarks/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
	if cfg.LocalOwner != "local" {
		t.Errorf("local owner = %q", cfg.LocalOwner)
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_OAuthMode(t *testing.T) {
	cfg := AuthConfig{Mode: "oauth"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("oauth mode without client should fail")
	}

	cfg.OAuth = OAuthConfig{ClientID: "id", ClientSecret: "secret"}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "session.secret") {
		t.Fatalf("expected session secret error, got %v", err)
	}

	cfg.Session.Secret = "short"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "at least") {
		t.Fatalf("expected secret length error, got %v", err)
	}

	cfg.Session.Secret = "0123456789abcdef0123"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid oauth config rejected: %v", err)
	}

	cfg.OAuth.TokenURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Fatal("bad token_url should fail")
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestFeedConfig(t *testing.T) {
	cfg := FeedConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != FeedBackendMemory {
		t.Errorf("backend = %q", cfg.Backend)
	}

	cfg = FeedConfig{Backend: FeedBackendRedis}
	if err := cfg.Validate(); err == nil {
		t.Error("redis backend without addr should fail")
	}
	cfg.Redis.Addr = "localhost:6379"
	if err := cfg.Validate(); err != nil {
		t.Errorf("redis backend rejected: %v", err)
	}

	cfg = FeedConfig{Backend: "kafka"}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown backend should fail")
	}

	cfg = FeedConfig{Heartbeat: 10 * time.Millisecond}
	if err := cfg.Validate(); err == nil {
		t.Error("sub-second heartbeat should fail")
	}
}

func TestImportConfig(t *testing.T) {
	cfg := ImportConfig{Enabled: true}
	if err := cfg.Validate(); err == nil {
		t.Error("enabled import without path should fail")
	}
	cfg = ImportConfig{}
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled import rejected: %v", err)
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	t.Setenv("SMARTMARKS_TEST_TOKEN", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
app:
  log_level: debug
  http:
    port: 9090
auth:
  mode: token
  token: ${SMARTMARKS_TEST_TOKEN}
feed:
  heartbeat: 10s
limits:
  mutations_per_minute: 30
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Auth.Token != "from-env" {
		t.Errorf("token = %q", cfg.Auth.Token)
	}
	if cfg.Feed.Heartbeat != 10*time.Second {
		t.Errorf("heartbeat = %v", cfg.Feed.Heartbeat)
	}
	if cfg.Limits.MutationsPerMinute != 30 || cfg.Limits.Burst != 20 {
		t.Errorf("limits = %+v", cfg.Limits)
	}
	// Untouched sections keep their defaults.
	if cfg.SQLite.Path != "./smartmarks.db" || cfg.Feed.Backend != FeedBackendMemory {
		t.Errorf("defaults lost: sqlite=%q feed=%q", cfg.SQLite.Path, cfg.Feed.Backend)
	}
}
