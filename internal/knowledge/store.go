package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// db is the pgx subset the store needs; pgxmock satisfies it in tests.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists chunks in the pgvector-backed documents table.
type Store struct {
	db db
}

// NewStore creates a store backed by a pgx pool.
func NewStore(pool db) *Store {
	if pool == nil {
		panic("knowledge: pgx pool required")
	}
	return &Store{db: pool}
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("knowledge: count failed: %w", err)
	}
	return count, nil
}

// DeleteAll clears the store ahead of a full rebuild.
func (s *Store) DeleteAll(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("knowledge: delete failed: %w", err)
	}
	return nil
}

// Insert writes one chunk. A chunk is never partially written.
func (s *Store) Insert(ctx context.Context, chunk Chunk, embeddingModel string) error {
	metadata, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("knowledge: encode metadata failed: %w", err)
	}
	query := `
		INSERT INTO documents (id, content, embedding, embedding_model, access_level,
			appointment_id, service_id, source, metadata)
		VALUES ($1, $2, $3::vector, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9)
	`
	if _, err := s.db.Exec(ctx, query,
		chunk.ID,
		chunk.Content,
		vectorLiteral(chunk.Embedding),
		embeddingModel,
		chunk.AccessLevel,
		chunk.AppointmentID,
		chunk.ServiceID,
		chunk.Source,
		metadata,
	); err != nil {
		return fmt.Errorf("knowledge: insert failed: %w", err)
	}
	return nil
}

// Search ranks stored chunks by vector distance to the query embedding,
// ascending, and returns the top k. Only chunks indexed with the given
// embedding model are candidates: ranking across models is meaningless.
func (s *Store) Search(ctx context.Context, embedding []float32, embeddingModel string, k int) ([]Chunk, error) {
	if k <= 0 {
		k = 5
	}
	query := `
		SELECT id, content, access_level, appointment_id, service_id, source, metadata,
			embedding <-> $1::vector AS distance
		FROM documents
		WHERE embedding_model = $2
		ORDER BY distance
		LIMIT $3
	`
	rows, err := s.db.Query(ctx, query, vectorLiteral(embedding), embeddingModel, k)
	if err != nil {
		return nil, fmt.Errorf("knowledge: search failed: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var (
			chunk                    Chunk
			appointmentID, serviceID *string
			metadata                 []byte
		)
		if err := rows.Scan(
			&chunk.ID,
			&chunk.Content,
			&chunk.AccessLevel,
			&appointmentID,
			&serviceID,
			&chunk.Source,
			&metadata,
			&chunk.Distance,
		); err != nil {
			return nil, fmt.Errorf("knowledge: scan failed: %w", err)
		}
		if appointmentID != nil {
			chunk.AppointmentID = *appointmentID
		}
		if serviceID != nil {
			chunk.ServiceID = *serviceID
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("knowledge: decode metadata failed: %w", err)
			}
		}
		out = append(out, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("knowledge: search rows failed: %w", err)
	}
	return out, nil
}

// vectorLiteral renders an embedding in pgvector's text format, e.g. [1,2,3].
func vectorLiteral(embedding []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
