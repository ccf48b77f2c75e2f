package history

import (
	"context"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// DatabaseFile is the history database inside a project directory.
const DatabaseFile = "hist.db"

// historyRow maps the proxy's history table.
type historyRow struct {
	ID           uint64 `gorm:"column:id;primaryKey"`
	URI          string `gorm:"column:uri"`
	Method       string `gorm:"column:method"`
	Params       bool   `gorm:"column:params"`
	Status       int    `gorm:"column:status"`
	Size         int    `gorm:"column:size"`
	Raw          string `gorm:"column:raw"`
	SSL          bool   `gorm:"column:ssl"`
	Response     string `gorm:"column:response"`
	ResponseTime string `gorm:"column:response_time"`
	RemoteAddr   string `gorm:"column:remote_addr"`
}

// TableName implements gorm's tabler interface.
func (historyRow) TableName() string {
	return "history"
}

func (h historyRow) record() Record {
	return Record{
		ID:           h.ID,
		RemoteAddr:   h.RemoteAddr,
		URI:          h.URI,
		Method:       h.Method,
		HasParams:    h.Params,
		StatusCode:   h.Status,
		Size:         h.Size,
		Raw:          h.Raw,
		SSL:          h.SSL,
		Response:     h.Response,
		ResponseTime: h.ResponseTime,
		Host:         HostFromRaw(h.Raw),
	}
}

// LocalSource reads the history database of a proxy project directory.
// The database is opened for each fetch, since the proxy keeps writing to
// it.
type LocalSource struct {
	projectPath string
	logger      zerolog.Logger
}

// NewLocalSource creates a source for the project at projectPath.
func NewLocalSource(projectPath string, logger zerolog.Logger) *LocalSource {
	return &LocalSource{
		projectPath: projectPath,
		logger:      logger.With().Str("component", "history-local").Logger(),
	}
}

// Name implements Source.
func (s *LocalSource) Name() string {
	return "local"
}

// IsValidProjectPath reports whether path is an existing directory whose
// history database can be opened.
func IsValidProjectPath(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	db, err := openDatabase(path, zerolog.Nop())
	if err != nil {
		return false
	}
	closeDatabase(db)
	return true
}

// FetchSince implements Source.
func (s *LocalSource) FetchSince(ctx context.Context, lastID uint64) ([]Record, error) {
	if info, err := os.Stat(s.projectPath); err != nil || !info.IsDir() {
		historyFetchesTotal.WithLabelValues(s.Name(), "unavailable").Inc()
		return nil, unavailable("project path %q is not a directory", s.projectPath)
	}

	db, err := openDatabase(s.projectPath, s.logger)
	if err != nil {
		historyFetchesTotal.WithLabelValues(s.Name(), "unavailable").Inc()
		return nil, unavailable("open %s: %v", DatabaseFile, err)
	}
	defer closeDatabase(db)

	var rows []historyRow
	if err := db.WithContext(ctx).Where("id > ?", lastID).Order("id ASC").Find(&rows).Error; err != nil {
		historyFetchesTotal.WithLabelValues(s.Name(), "unavailable").Inc()
		return nil, unavailable("query history: %v", err)
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}

	historyFetchesTotal.WithLabelValues(s.Name(), "ok").Inc()
	s.logger.Debug().Uint64("last_id", lastID).Int("records", len(out)).Msg("Fetched local history")
	return out, nil
}

func openDatabase(projectPath string, logger zerolog.Logger) (*gorm.DB, error) {
	dsn := filepath.Join(projectPath, DatabaseFile)
	if _, err := os.Stat(dsn); err != nil {
		return nil, err
	}
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: newGormLogger(logger)})
}

func closeDatabase(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
