package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps documents in the documents table so several API
// processes can share one corpus.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) List(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT filename, format, size, updated_at FROM documents ORDER BY filename`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentInfo
	for rows.Next() {
		var d DocumentInfo
		if err := rows.Scan(&d.Filename, &d.Format, &d.Size, &d.ModifiedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

func (s *PostgresStore) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT content FROM documents WHERE filename = $1`, name).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", name, err)
	}
	return data, nil
}

func (s *PostgresStore) Save(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	format, _ := FormatFromName(name)
	if data == nil {
		data = []byte{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (filename, format, content, size, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (filename) DO UPDATE
		SET format = EXCLUDED.format, content = EXCLUDED.content,
		    size = EXCLUDED.size, updated_at = now()`,
		name, string(format), data, int64(len(data)),
	)
	if err != nil {
		return fmt.Errorf("storing document %s: %w", name, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE filename = $1`, name)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}
