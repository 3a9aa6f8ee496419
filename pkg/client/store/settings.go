package store

import "context"

const (
	agentURLKey = "agentUrl"
	themeKey    = "theme"

	DefaultBackendURL = "http://localhost:8787"
	DefaultTheme      = "dark"
)

func (s *Store) BackendURL(ctx context.Context) (string, error) {
	return s.setting(ctx, agentURLKey, DefaultBackendURL)
}

func (s *Store) SetBackendURL(ctx context.Context, url string) error {
	return s.kv.Set(ctx, agentURLKey, url)
}

func (s *Store) Theme(ctx context.Context) (string, error) {
	return s.setting(ctx, themeKey, DefaultTheme)
}

func (s *Store) SetTheme(ctx context.Context, theme string) error {
	return s.kv.Set(ctx, themeKey, theme)
}

func (s *Store) setting(ctx context.Context, key, fallback string) (string, error) {
	var v string
	found, err := s.kv.Get(ctx, key, &v)
	if err != nil {
		return "", err
	}
	if !found || v == "" {
		return fallback, nil
	}
	return v, nil
}
