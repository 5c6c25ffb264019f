package fsbrowser

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrNotDirectory = errors.New("not a project folder")

// Service validates project folders sent by the operator.
type Service struct {
	home func() (string, error)
}

func NewService() *Service { return &Service{home: os.UserHomeDir} }

// Resolve turns operator input into a clean absolute directory path.
// Surrounding quotes, as pasted by "Copy as path", and a leading ~ are accepted.
func (s *Service) Resolve(input string) (string, error) {
	path := s.normalize(input)
	if path == "" {
		return "", errors.New("path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	st, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotDirectory
		}
		return "", err
	}
	if !st.IsDir() {
		return "", ErrNotDirectory
	}
	return filepath.Clean(abs), nil
}

func (s *Service) normalize(input string) string {
	path := strings.TrimSpace(input)
	if len(path) >= 2 {
		first, last := path[0], path[len(path)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			path = strings.TrimSpace(path[1 : len(path)-1])
		}
	}
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		if home, err := s.home(); err == nil && home != "" {
			path = filepath.Join(home, path[1:])
		}
	}
	return path
}

// Suggest returns up to limit folders next to input whose names contain, or
// are contained in, its last element, ignoring case.
func (s *Service) Suggest(input string, limit int) []string {
	path := s.normalize(input)
	if path == "" || limit <= 0 {
		return nil
	}
	parent := filepath.Dir(path)
	want := strings.ToLower(filepath.Base(path))
	if want == "" || want == "." || want == string(filepath.Separator) {
		return nil
	}
	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil
	}
	out := make([]string, 0, limit)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if strings.Contains(name, want) || strings.Contains(want, name) {
			out = append(out, filepath.Join(parent, entry.Name()))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
