package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/finovo/leaseflow/internal/config"
	"go.uber.org/zap"
)

// LocalProvider keeps assets on the local filesystem under cfg.AssetDir and
// returns refs prefixed with cfg.AssetBaseURL.
type LocalProvider struct {
	dir     string
	baseURL string
	log     *zap.Logger
}

func NewLocalProvider(cfg config.Config, log *zap.Logger) (*LocalProvider, error) {
	if err := os.MkdirAll(cfg.AssetDir, 0o755); err != nil {
		return nil, err
	}
	return &LocalProvider{
		dir:     cfg.AssetDir,
		baseURL: strings.TrimRight(cfg.AssetBaseURL, "/"),
		log:     log.Named("storage.local"),
	}, nil
}

func Provide(cfg config.Config, log *zap.Logger) (Provider, error) {
	return NewLocalProvider(cfg, log)
}

func (p *LocalProvider) Upload(ctx context.Context, key string, content []byte) (string, error) {
	key = sanitizeKey(key)
	path := filepath.Join(p.dir, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", err
	}
	p.log.Debug("asset stored", zap.String("key", key), zap.Int("size", len(content)))
	return p.baseURL + "/" + key, nil
}

func (p *LocalProvider) Fetch(ctx context.Context, ref string) ([]byte, error) {
	key := strings.TrimPrefix(ref, p.baseURL+"/")
	key = sanitizeKey(key)
	content, err := os.ReadFile(filepath.Join(p.dir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return content, nil
}

func (p *LocalProvider) Delete(ctx context.Context, ref string) error {
	key := strings.TrimPrefix(ref, p.baseURL+"/")
	key = sanitizeKey(key)
	if err := os.Remove(filepath.Join(p.dir, key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	p.log.Debug("asset removed", zap.String("key", key))
	return nil
}

func sanitizeKey(key string) string {
	key = strings.TrimLeft(key, "/")
	// Path traversal is the only thing worth guarding against here.
	return strings.ReplaceAll(key, "..", "")
}
