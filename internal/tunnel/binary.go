package tunnel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
)

const releaseURLTemplate = "https://github.com/cloudflare/cloudflared/releases/latest/download/%s"

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "cloudflared.exe"
	}
	return "cloudflared"
}

// releaseAsset names the single-file release build for goos/goarch.
// macOS only ships tarballs, so it has none.
func releaseAsset(goos, goarch string) (string, bool) {
	switch goos {
	case "linux":
		switch goarch {
		case "amd64", "arm64", "arm", "386":
			return fmt.Sprintf("cloudflared-linux-%s", goarch), true
		}
	case "windows":
		switch goarch {
		case "amd64", "386":
			return fmt.Sprintf("cloudflared-windows-%s.exe", goarch), true
		}
	}
	return "", false
}

// resolveBinary finds cloudflared once; the outcome, including failure, is
// cached unless ctx ended first.
func (m *Manager) resolveBinary(ctx context.Context) (string, error) {
	m.binMu.Lock()
	defer m.binMu.Unlock()
	if m.binResolved {
		return m.binPath, m.binErr
	}
	path, err := m.locateBinary(ctx)
	if err != nil && ctx.Err() != nil {
		// Interrupted, not failed: the next Create tries again.
		m.logger.Warn("cloudflared lookup interrupted", "err", err)
		return "", err
	}
	m.binPath, m.binErr, m.binResolved = path, err, true
	if m.binErr != nil {
		m.logger.Error("cloudflared unavailable", "err", m.binErr)
	} else {
		m.logger.Info("cloudflared resolved", "path", m.binPath)
	}
	return m.binPath, m.binErr
}

func (m *Manager) locateBinary(ctx context.Context) (string, error) {
	if m.opts.BinaryPath != "" {
		if _, err := os.Stat(m.opts.BinaryPath); err != nil {
			return "", fmt.Errorf("%w: %v", ErrTunnelUnavailable, err)
		}
		return m.opts.BinaryPath, nil
	}
	if path, err := m.lookPath("cloudflared"); err == nil {
		return path, nil
	}
	if m.opts.CacheDir == "" {
		return "", fmt.Errorf("%w: not on PATH and no cache dir", ErrTunnelUnavailable)
	}
	dest := filepath.Join(m.opts.CacheDir, binaryName())
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	url := m.opts.DownloadURL
	if url == "" {
		asset, ok := releaseAsset(runtime.GOOS, runtime.GOARCH)
		if !ok {
			return "", fmt.Errorf("%w: no release build for %s/%s", ErrTunnelUnavailable, runtime.GOOS, runtime.GOARCH)
		}
		url = fmt.Sprintf(releaseURLTemplate, asset)
	}
	if err := m.download(ctx, url, dest); err != nil {
		return "", fmt.Errorf("%w: %w", ErrTunnelUnavailable, err)
	}
	return dest, nil
}

func (m *Manager) download(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	m.logger.Info("downloading cloudflared", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned HTTP %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write binary: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", closeErr)
	}
	if err := os.Chmod(tmpPath, 0o755); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod binary: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename binary: %w", err)
	}
	m.logger.Info("download complete", "path", dest)
	return nil
}
