package historydb

import (
	"errors"
	"strings"
	"time"

	dbmodel "ghostsync/cli/internal/db"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	OutcomeRunning     = "running"
	OutcomeCompleted   = "completed"
	OutcomeFailed      = "failed"
	OutcomeInterrupted = "interrupted"
)

// ProjectEntry is one recently opened project folder.
type ProjectEntry struct {
	Path          string    `json:"path"`
	FirstAccessed time.Time `json:"first_accessed"`
	LastAccessed  time.Time `json:"last_accessed"`
	AccessCount   int       `json:"access_count"`
}

type RunRecord struct {
	RunID           string    `json:"run_id"`
	UserID          int64     `json:"user_id"`
	ProjectPath     string    `json:"project_path"`
	Prompt          string    `json:"prompt"`
	Reply           string    `json:"reply"`
	LocalURL        string    `json:"local_url,omitempty"`
	PublicURL       string    `json:"public_url,omitempty"`
	Outcome         string    `json:"outcome"`
	Error           string    `json:"error,omitempty"`
	PromptsResolved int       `json:"prompts_resolved"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at,omitempty"`
}

// RunResult is what FinishRun stores for a run.
type RunResult struct {
	Reply           string
	LocalURL        string
	PublicURL       string
	PromptsResolved int
	Err             error
}

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore uses the shared process DB. Caller must not close the db through the store.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return errors.New("history store is not initialized")
	}
	return nil
}

// BeginRun inserts a running record and returns its id.
func (s *Store) BeginRun(userID int64, projectPath, prompt string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	row := dbmodel.Run{
		RunID:       uuid.NewString(),
		UserID:      userID,
		ProjectPath: strings.TrimSpace(projectPath),
		Prompt:      prompt,
		Outcome:     OutcomeRunning,
		StartedAt:   s.now().UTC().Unix(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return "", err
	}
	return row.RunID, nil
}

func (s *Store) FinishRun(runID string, res RunResult) error {
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(runID) == "" {
		return errors.New("run id is required")
	}
	outcome := OutcomeCompleted
	errText := ""
	if res.Err != nil {
		outcome = OutcomeFailed
		errText = res.Err.Error()
	}
	return s.db.Model(&dbmodel.Run{}).Where("run_id = ?", runID).Updates(map[string]any{
		"reply":            res.Reply,
		"local_url":        res.LocalURL,
		"public_url":       res.PublicURL,
		"prompts_resolved": res.PromptsResolved,
		"outcome":          outcome,
		"error_text":       errText,
		"finished_at":      s.now().UTC().Unix(),
	}).Error
}

func (s *Store) RecordDecision(runID, decision, source string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.Create(&dbmodel.PromptDecision{
		RunID:     runID,
		Decision:  decision,
		Source:    source,
		CreatedAt: s.now().UTC().Unix(),
	}).Error
}

// ListRuns returns the newest runs first.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows := make([]dbmodel.Run, 0, limit)
	if err := s.db.Order("started_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]RunRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRecord(row))
	}
	return out, nil
}

func (s *Store) GetRun(runID string) (RunRecord, error) {
	if err := s.ready(); err != nil {
		return RunRecord{}, err
	}
	var row dbmodel.Run
	if err := s.db.Where("run_id = ?", runID).First(&row).Error; err != nil {
		return RunRecord{}, err
	}
	return toRecord(row), nil
}

func toRecord(row dbmodel.Run) RunRecord {
	rec := RunRecord{
		RunID:           row.RunID,
		UserID:          row.UserID,
		ProjectPath:     row.ProjectPath,
		Prompt:          row.Prompt,
		Reply:           row.Reply,
		LocalURL:        row.LocalURL,
		PublicURL:       row.PublicURL,
		Outcome:         row.Outcome,
		Error:           row.ErrorText,
		PromptsResolved: row.PromptsResolved,
		StartedAt:       time.Unix(row.StartedAt, 0).UTC(),
	}
	if row.FinishedAt > 0 {
		rec.FinishedAt = time.Unix(row.FinishedAt, 0).UTC()
	}
	return rec
}

func (s *Store) UpsertProject(path string) error {
	if err := s.ready(); err != nil {
		return err
	}
	p := strings.TrimSpace(path)
	if p == "" {
		return errors.New("path is required")
	}
	now := s.now().UTC().Unix()
	row := dbmodel.ProjectHistory{
		Path:            p,
		FirstAccessedAt: now,
		LastAccessedAt:  now,
		AccessCount:     1,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "path"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_accessed_at": now,
			"access_count":     gorm.Expr("project_history.access_count + 1"),
		}),
	}).Create(&row).Error
}

func (s *Store) ListProjects(limit int) ([]ProjectEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows := make([]dbmodel.ProjectHistory, 0, limit)
	if err := s.db.Order("last_accessed_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]ProjectEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, ProjectEntry{
			Path:          row.Path,
			FirstAccessed: time.Unix(row.FirstAccessedAt, 0).UTC(),
			LastAccessed:  time.Unix(row.LastAccessedAt, 0).UTC(),
			AccessCount:   row.AccessCount,
		})
	}
	return entries, nil
}

// Clear removes every run, decision and project entry.
func (s *Store) Clear() error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&dbmodel.PromptDecision{}, &dbmodel.Run{}, &dbmodel.ProjectHistory{}} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
