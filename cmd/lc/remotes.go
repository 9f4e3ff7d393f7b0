package main

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// RemotesConfig holds all named remotes and tracks which one is active.
type RemotesConfig struct {
	Active  string            `toml:"active"`
	Remotes map[string]Remote `toml:"remotes"`
}

// Remote is a named server profile. Token and Email are filled in by
// "lc login" and "lc register".
type Remote struct {
	URL         string `toml:"url"`
	Token       string `toml:"token,omitempty"`
	Email       string `toml:"email,omitempty"`
	Description string `toml:"description,omitempty"`
}

// defaultRemote is created on first login when no remote is active.
const defaultRemote = "default"

func remoteConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "lowcode")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "remotes.toml"), nil
}

func loadRemotesConfig() (RemotesConfig, error) {
	path, err := remoteConfigPath()
	if err != nil {
		return RemotesConfig{}, err
	}
	var cfg RemotesConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return RemotesConfig{Remotes: map[string]Remote{}}, nil
		}
		return RemotesConfig{}, err
	}
	if cfg.Remotes == nil {
		cfg.Remotes = map[string]Remote{}
	}
	return cfg, nil
}

func saveRemotesConfig(cfg RemotesConfig) error {
	path, err := remoteConfigPath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// saveSession stores token and email on the active remote, creating and
// activating the default remote for url when none is active. It returns
// the name of the remote written.
func saveSession(url, token, email string) (string, error) {
	cfg, err := loadRemotesConfig()
	if err != nil {
		return "", err
	}
	name := cfg.Active
	r, ok := cfg.Remotes[name]
	if name == "" || !ok || r.URL != url {
		name = remoteForURL(cfg, url)
		r = cfg.Remotes[name]
		r.URL = url
	}
	r.Token = token
	r.Email = email
	cfg.Remotes[name] = r
	cfg.Active = name
	return name, saveRemotesConfig(cfg)
}

// remoteForURL returns the name of a remote pointing at url, or the default
// name when none does.
func remoteForURL(cfg RemotesConfig, url string) string {
	for name, r := range cfg.Remotes {
		if r.URL == url {
			return name
		}
	}
	return defaultRemote
}

// Cached active remote values, loaded once per process.
var (
	remoteOnce      sync.Once
	cachedRemoteURL string
	cachedToken     string
)

func loadActiveRemoteOnce() {
	remoteOnce.Do(func() {
		cfg, err := loadRemotesConfig()
		if err != nil || cfg.Active == "" {
			return
		}
		r, ok := cfg.Remotes[cfg.Active]
		if !ok {
			return
		}
		cachedRemoteURL = r.URL
		cachedToken = r.Token
	})
}

func activeRemoteURL() string {
	loadActiveRemoteOnce()
	return cachedRemoteURL
}

func activeRemoteToken() string {
	loadActiveRemoteOnce()
	return cachedToken
}
