package screen

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	latestFrameName = "latest.png"
	verifyShotName  = "verify_prompt.png"
)

// Shots writes screenshots under one directory.
type Shots struct {
	dir string
}

func NewShots(dir string) *Shots {
	return &Shots{dir: dir}
}

func (s *Shots) Dir() string { return s.dir }

// Save writes frame to a new unpredictable ss_<uuid>.png file.
func (s *Shots) Save(frame image.Image) (string, error) {
	path := filepath.Join(s.dir, "ss_"+strings.ReplaceAll(uuid.NewString(), "-", "")+".png")
	if err := writePNGAtomically(path, frame); err != nil {
		return "", err
	}
	return path, nil
}

// SaveLatest replaces the rolling live-view frame.
func (s *Shots) SaveLatest(frame image.Image) (string, error) {
	path := s.LatestPath()
	return path, writePNGAtomically(path, frame)
}

func (s *Shots) LatestPath() string {
	return filepath.Join(s.dir, latestFrameName)
}

// SaveVerify overwrites the post-paste verification frame.
func (s *Shots) SaveVerify(frame image.Image) (string, error) {
	path := filepath.Join(s.dir, verifyShotName)
	return path, writePNGAtomically(path, frame)
}

// Remove deletes a screenshot written by Save. Missing files are ignored.
func (s *Shots) Remove(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func writePNGAtomically(path string, frame image.Image) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".shot-*.png")
	if err != nil {
		return fmt.Errorf("create temp screenshot: %w", err)
	}
	tmpPath := tmp.Name()
	encErr := png.Encode(tmp, frame)
	closeErr := tmp.Close()
	if encErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode screenshot: %w", encErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return closeErr
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename screenshot: %w", err)
	}
	return nil
}
