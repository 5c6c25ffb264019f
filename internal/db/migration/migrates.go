package migration

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
)

type step struct {
	name string
	run  func(*Migration) error
}

var (
	steps    []step
	initOnce sync.Once
)

// Migration is passed to each migration step. DB is set by RunAll.
type Migration struct {
	DB   *gorm.DB
	logs []string
}

func (m *Migration) Log(v ...interface{}) {
	m.logs = append(m.logs, fmt.Sprint(v...))
}

func (m *Migration) Logs() []string {
	return append([]string(nil), m.logs...)
}

// Init registers the built-in steps once.
func Init() {
	initOnce.Do(func() {
		steps = append(steps,
			step{name: "close_interrupted_runs", run: closeInterruptedRuns},
		)
	})
}

// RunAll runs all registered migrations in order. Used for data/behavior one-shots; schema is synced via db.SyncSchema.
func RunAll(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	ctx := &Migration{DB: db}
	for _, s := range steps {
		ctx.logs = nil
		if err := s.run(ctx); err != nil {
			return fmt.Errorf("migration %s failed: %w", s.name, err)
		}
	}
	return nil
}

// closeInterruptedRuns marks runs left "running" by a previous process as interrupted.
func closeInterruptedRuns(m *Migration) error {
	res := m.DB.Exec(`UPDATE runs SET outcome = 'interrupted', finished_at = started_at WHERE outcome = 'running'`)
	if res.Error != nil {
		return res.Error
	}
	m.Log("interrupted runs closed: ", res.RowsAffected)
	return nil
}
