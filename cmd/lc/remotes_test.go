package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	in := RemotesConfig{
		Active: "prod",
		Remotes: map[string]Remote{
			"prod":  {URL: "https://lowcode.example.com", Token: "tok_abc", Email: "ann@example.com"},
			"local": {URL: "http://localhost:8080", Description: "dev box"},
		},
	}
	if err := saveRemotesConfig(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Active != "prod" {
		t.Errorf("Active = %q, want %q", got.Active, "prod")
	}
	prod := got.Remotes["prod"]
	if prod.URL != "https://lowcode.example.com" || prod.Token != "tok_abc" || prod.Email != "ann@example.com" {
		t.Errorf("prod remote = %+v, wrong values", prod)
	}
	if got.Remotes["local"].Description != "dev box" {
		t.Errorf("local remote = %+v", got.Remotes["local"])
	}
}

func TestLoadRemotesConfig_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Active != "" || len(cfg.Remotes) != 0 {
		t.Errorf("expected empty config, got %+v", cfg)
	}
	if cfg.Remotes == nil {
		t.Error("Remotes map must not be nil after load")
	}
}

func TestSaveRemotesConfig_Permissions(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := saveRemotesConfig(RemotesConfig{Remotes: map[string]Remote{}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	path, _ := remoteConfigPath()
	if !strings.HasSuffix(path, filepath.Join(".local", "state", "lowcode", "remotes.toml")) {
		t.Errorf("path = %q", path)
	}
	check := func(p string, want os.FileMode) {
		t.Helper()
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if got := info.Mode().Perm(); got != want {
			t.Errorf("%s permissions = %04o, want %04o", p, got, want)
		}
	}
	check(path, 0o600)
	check(filepath.Dir(path), 0o700)
}

func TestSaveSession(t *testing.T) {
	t.Run("creates default remote", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())

		name, err := saveSession("http://localhost:8080", "jwt.1", "ann@example.com")
		if err != nil {
			t.Fatal(err)
		}
		if name != defaultRemote {
			t.Errorf("name = %q, want %q", name, defaultRemote)
		}
		cfg, _ := loadRemotesConfig()
		r := cfg.Remotes[defaultRemote]
		if cfg.Active != defaultRemote || r.URL != "http://localhost:8080" || r.Token != "jwt.1" || r.Email != "ann@example.com" {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	t.Run("updates active remote", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		if err := saveRemotesConfig(RemotesConfig{
			Active:  "prod",
			Remotes: map[string]Remote{"prod": {URL: "https://prod", Description: "keep me"}},
		}); err != nil {
			t.Fatal(err)
		}

		name, err := saveSession("https://prod", "jwt.2", "bob@example.com")
		if err != nil {
			t.Fatal(err)
		}
		cfg, _ := loadRemotesConfig()
		if name != "prod" || cfg.Remotes["prod"].Token != "jwt.2" || cfg.Remotes["prod"].Description != "keep me" {
			t.Errorf("name = %q, cfg = %+v", name, cfg)
		}
	})

	t.Run("switches to remote matching url", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		if err := saveRemotesConfig(RemotesConfig{
			Active: "prod",
			Remotes: map[string]Remote{
				"prod":    {URL: "https://prod", Token: "old"},
				"staging": {URL: "https://staging"},
			},
		}); err != nil {
			t.Fatal(err)
		}

		name, err := saveSession("https://staging", "jwt.3", "ann@example.com")
		if err != nil {
			t.Fatal(err)
		}
		cfg, _ := loadRemotesConfig()
		if name != "staging" || cfg.Active != "staging" {
			t.Errorf("name = %q, active = %q", name, cfg.Active)
		}
		if cfg.Remotes["prod"].Token != "old" {
			t.Error("prod token should be untouched")
		}
		if cfg.Remotes["staging"].Token != "jwt.3" {
			t.Errorf("staging = %+v", cfg.Remotes["staging"])
		}
	})
}

func TestRemoteLifecycle(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	mustRun := func(fn func() error) {
		t.Helper()
		if err := fn(); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	remoteAddCmd.SetOut(&buf)
	mustRun(func() error { return remoteAddCmd.RunE(remoteAddCmd, []string{"local", "http://localhost:8080/"}) })
	mustRun(func() error { return remoteAddCmd.RunE(remoteAddCmd, []string{"other", "http://other:8080"}) })

	cfg, _ := loadRemotesConfig()
	if cfg.Active != "local" {
		t.Fatalf("first remote should become active, got %q", cfg.Active)
	}
	if cfg.Remotes["local"].URL != "http://localhost:8080" {
		t.Errorf("trailing slash should be trimmed, got %q", cfg.Remotes["local"].URL)
	}

	remoteUseCmd.SetOut(&buf)
	mustRun(func() error { return remoteUseCmd.RunE(remoteUseCmd, []string{"other"}) })
	cfg, _ = loadRemotesConfig()
	if cfg.Active != "other" {
		t.Fatalf("Active = %q, want other", cfg.Active)
	}

	buf.Reset()
	remoteListCmd.SetOut(&buf)
	mustRun(func() error { return remoteListCmd.RunE(remoteListCmd, nil) })
	out := buf.String()
	if !strings.Contains(out, "* other") || !strings.Contains(out, "  local") {
		t.Errorf("list missing markers; got:\n%s", out)
	}
	if strings.Index(out, "local") > strings.Index(out, "other") {
		t.Errorf("list should be sorted by name; got:\n%s", out)
	}

	buf.Reset()
	remoteShowCmd.SetOut(&buf)
	mustRun(func() error { return remoteShowCmd.RunE(remoteShowCmd, []string{"local"}) })
	if !strings.Contains(buf.String(), "http://localhost:8080") || strings.Contains(buf.String(), "(active)") {
		t.Errorf("show by name; got:\n%s", buf.String())
	}

	remoteRemoveCmd.SetOut(&buf)
	mustRun(func() error { return remoteRemoveCmd.RunE(remoteRemoveCmd, []string{"other"}) })
	cfg, _ = loadRemotesConfig()
	if _, ok := cfg.Remotes["other"]; ok {
		t.Error("remote 'other' should be gone")
	}
	if cfg.Active != "" {
		t.Errorf("Active should be cleared, got %q", cfg.Active)
	}
}

func TestRemoteAdd_URLChangeDropsSession(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if err := saveRemotesConfig(RemotesConfig{
		Active:  "prod",
		Remotes: map[string]Remote{"prod": {URL: "https://a", Token: "jwt", Email: "ann@example.com"}},
	}); err != nil {
		t.Fatal(err)
	}

	remoteAddCmd.SetOut(&bytes.Buffer{})
	if err := remoteAddCmd.RunE(remoteAddCmd, []string{"prod", "https://b"}); err != nil {
		t.Fatal(err)
	}
	cfg, _ := loadRemotesConfig()
	if r := cfg.Remotes["prod"]; r.Token != "" || r.Email != "" || r.URL != "https://b" {
		t.Errorf("prod = %+v, want session cleared", r)
	}
}

func TestRemoteTokenMasking(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := remoteAddCmd.Flags().Set("token", "tok_verylongsecret"); err != nil {
		t.Fatalf("set token flag: %v", err)
	}
	t.Cleanup(func() { _ = remoteAddCmd.Flags().Set("token", "") })

	remoteAddCmd.SetOut(&bytes.Buffer{})
	if err := remoteAddCmd.RunE(remoteAddCmd, []string{"prod", "https://prod"}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	remoteListCmd.SetOut(&buf)
	if err := remoteListCmd.RunE(remoteListCmd, nil); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "tok_very") {
		t.Errorf("list must not show the token; got:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "(token)") {
		t.Errorf("list should flag a stored token; got:\n%s", buf.String())
	}

	buf.Reset()
	remoteShowCmd.SetOut(&buf)
	if err := remoteShowCmd.RunE(remoteShowCmd, nil); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "tok_verylongsecret") {
		t.Error("full token must not appear in show output")
	}
	if !strings.Contains(buf.String(), "tok_very**********") {
		t.Errorf("expected masked token in show; got:\n%s", buf.String())
	}
}

func TestMaskToken(t *testing.T) {
	tests := map[string]string{
		"":           "",
		"short":      "*****",
		"12345678":   "********",
		"1234567890": "12345678**",
	}
	for in, want := range tests {
		if got := maskToken(in); got != want {
			t.Errorf("maskToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRemoteErrorCases(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"use unknown", func() error { return remoteUseCmd.RunE(remoteUseCmd, []string{"ghost"}) }},
		{"remove unknown", func() error { return remoteRemoveCmd.RunE(remoteRemoveCmd, []string{"ghost"}) }},
		{"show no active", func() error { return remoteShowCmd.RunE(remoteShowCmd, nil) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			if err := tc.fn(); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
