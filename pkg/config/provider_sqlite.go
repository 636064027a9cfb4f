package config

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/beringseaice/pkg/migrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

const defaultConfigName = "default"

// SQLiteProvider implements ConfigProvider for SQLite database configuration.
// Each job is a row whose options column holds the job as JSON.
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
	logger *zap.SugaredLogger
}

// NewSQLiteProvider opens the database at dbPath and applies any pending
// schema migrations
func NewSQLiteProvider(dbPath string, logger *zap.SugaredLogger) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	migrator := migrate.NewMigrator(db, Schema(), logger)
	if err := migrator.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate config database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
		logger: logger,
	}, nil
}

// Schema returns the configuration database's embedded schema migrations.
func Schema() migrate.MigrationProvider {
	return migrate.NewFSProvider(migrations, "migrations", "")
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	var logFile, cacheDir, archive sql.NullString
	err := s.db.QueryRow(
		`SELECT log_file, cache_dir, archive FROM configs WHERE name = ?`, defaultConfigName,
	).Scan(&logFile, &cacheDir, &archive)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no configuration stored in %s", s.dbPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	config.LogFile = logFile.String
	config.CacheDir = cacheDir.String
	config.Archive = archive.String

	jobs, err := s.GetJobs()
	if err != nil {
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}
	config.Jobs = jobs

	s.logger.Debugf("loaded %d jobs from %s", len(jobs), s.dbPath)
	return config, nil
}

// GetJobs returns job configurations in run order
func (s *SQLiteProvider) GetJobs() ([]JobData, error) {
	query := `
		SELECT j.name, j.type, j.options
		FROM jobs j
		JOIN configs c ON c.id = j.config_id
		WHERE c.name = ?
		ORDER BY j.position
	`

	rows, err := s.db.Query(query, defaultConfigName)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobData
	for rows.Next() {
		var name, jobType, options string
		if err := rows.Scan(&name, &jobType, &options); err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}

		var job JobData
		if err := json.Unmarshal([]byte(options), &job); err != nil {
			return nil, fmt.Errorf("failed to decode options of job %s: %w", name, err)
		}
		job.Name = name
		job.Type = jobType
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// SaveConfig replaces the stored configuration with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO configs (name, log_file, cache_dir, archive)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			log_file = excluded.log_file,
			cache_dir = excluded.cache_dir,
			archive = excluded.archive,
			updated_at = CURRENT_TIMESTAMP
	`, defaultConfigName, nullString(configData.LogFile), nullString(configData.CacheDir), nullString(configData.Archive))
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}

	var configID int64
	if err := tx.QueryRow(`SELECT id FROM configs WHERE name = ?`, defaultConfigName).Scan(&configID); err != nil {
		return fmt.Errorf("failed to look up config id: %w", err)
	}

	// Clear existing jobs
	if _, err := tx.Exec(`DELETE FROM jobs WHERE config_id = ?`, configID); err != nil {
		return fmt.Errorf("failed to clear existing jobs: %w", err)
	}

	for i, job := range configData.Jobs {
		options, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to encode job %s: %w", job.Name, err)
		}
		_, err = tx.Exec(
			`INSERT INTO jobs (config_id, position, name, type, options) VALUES (?, ?, ?, ?, ?)`,
			configID, i, job.Name, job.Type, string(options))
		if err != nil {
			return fmt.Errorf("failed to insert job %s: %w", job.Name, err)
		}
	}

	return tx.Commit()
}

// IsReadOnly returns false since SQLite supports writes
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
