package repo

import (
	"fmt"
)

// AddRemote records a named remote URL in .git/config.
func (r *Repo) AddRemote(name, url string) error {
	cfg, err := r.Config()
	if err != nil {
		return fmt.Errorf("remote add: %w", err)
	}
	if _, exists := cfg.Get("remote", name, "url"); exists {
		return fmt.Errorf("remote %q already exists", name)
	}
	cfg.Set("remote", name, "url", url)
	if err := r.SaveConfig(cfg); err != nil {
		return fmt.Errorf("remote add: %w", err)
	}
	return nil
}

// RemoveRemote deletes a remote and its configuration.
func (r *Repo) RemoveRemote(name string) error {
	cfg, err := r.Config()
	if err != nil {
		return fmt.Errorf("remote remove: %w", err)
	}
	if _, exists := cfg.Get("remote", name, "url"); !exists {
		return fmt.Errorf("remote %q not found", name)
	}
	cfg.RemoveSection("remote", name)
	if err := r.SaveConfig(cfg); err != nil {
		return fmt.Errorf("remote remove: %w", err)
	}
	return nil
}

// RemoteURL returns the configured URL for a remote.
func (r *Repo) RemoteURL(name string) (string, error) {
	cfg, err := r.Config()
	if err != nil {
		return "", err
	}
	url, ok := cfg.Get("remote", name, "url")
	if !ok {
		return "", fmt.Errorf("remote %q not found", name)
	}
	return url, nil
}

// Remotes lists configured remote names sorted.
func (r *Repo) Remotes() ([]string, error) {
	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}
	return cfg.Labels("remote"), nil
}
