package pg

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/filmzi/filelink/shared/config"
	"github.com/filmzi/filelink/shared/domain"
	internal_errors "github.com/filmzi/filelink/shared/errors"
	"github.com/filmzi/filelink/shared/logger"

	_ "github.com/lib/pq"
)

//go:embed migrations/init.sql
var schema string

// Storage keeps mappings in the file_mappings table. Writes are upserts, so
// the last writer of an id wins.
type Storage struct {
	db *sql.DB
}

func New(ctx context.Context, cfg *config.Config) (*Storage, error) {
	logger.Log.Info("connecting to db", "host", cfg.Private.Pg.Host, "dbname", cfg.Private.Pg.Dbname)
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	logger.Log.Info("successfully connected to db")
	return &Storage{db: db}, nil
}

func Connect(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Private.Pg.Host, cfg.Private.Pg.Port, cfg.Private.Pg.User, cfg.Private.Pg.Password, cfg.Private.Pg.Dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (s *Storage) Cleanup() error {
	return s.db.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Put(ctx context.Context, m domain.FileMapping) error {
	var createdAt sql.NullTime
	if !m.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: m.CreatedAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_mappings (short_id, file_handle, filename, size, uploader_id, uploader_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (short_id) DO UPDATE SET
			file_handle = EXCLUDED.file_handle,
			filename = EXCLUDED.filename,
			size = EXCLUDED.size,
			uploader_id = EXCLUDED.uploader_id,
			uploader_name = EXCLUDED.uploader_name,
			created_at = EXCLUDED.created_at,
			updated_at = now()`,
		m.ShortId, m.FileHandle, m.Filename, m.Size, m.UploaderId, m.UploaderName, createdAt,
	)
	if err != nil {
		return fmt.Errorf("put mapping %s: %w", m.ShortId, err)
	}
	return nil
}

const selectMapping = `SELECT short_id, file_handle, filename, size, uploader_id, uploader_name, created_at FROM file_mappings`

type scanner interface {
	Scan(dest ...any) error
}

func scanMapping(row scanner) (domain.FileMapping, error) {
	var (
		m         domain.FileMapping
		createdAt sql.NullTime
	)
	if err := row.Scan(&m.ShortId, &m.FileHandle, &m.Filename, &m.Size, &m.UploaderId, &m.UploaderName, &createdAt); err != nil {
		return domain.FileMapping{}, err
	}
	if createdAt.Valid {
		m.CreatedAt = createdAt.Time.UTC()
	}
	return m, nil
}

func (s *Storage) Get(ctx context.Context, id domain.ShortId) (domain.FileMapping, error) {
	m, err := scanMapping(s.db.QueryRowContext(ctx, selectMapping+` WHERE short_id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FileMapping{}, internal_errors.NotFound
	}
	if err != nil {
		return domain.FileMapping{}, fmt.Errorf("get mapping %s: %w", id, err)
	}
	return m, nil
}

func (s *Storage) List(ctx context.Context) ([]domain.FileMapping, error) {
	rows, err := s.db.QueryContext(ctx, selectMapping+` ORDER BY created_at DESC NULLS LAST, short_id`)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var mappings []domain.FileMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("list mappings: %w", err)
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}
