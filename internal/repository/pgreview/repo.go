// Package pgreview stores reviews in a pgvector table.
package pgreview

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/revdex/internal/db"
	"github.com/kailas-cloud/revdex/internal/domain"
	domreview "github.com/kailas-cloud/revdex/internal/domain/review"
	"github.com/kailas-cloud/revdex/internal/domain/search/filter"
)

// DefaultTable is the reviews table name.
const DefaultTable = "reviews"

// querier is satisfied by *pgxpool.Pool and pgxmock pools.
type querier interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repo implements the vector store on Postgres + pgvector.
type Repo struct {
	q     querier
	table string
	dim   int
}

// New creates a repository over table (DefaultTable when empty).
func New(q querier, table string, dim int) *Repo {
	if table == "" {
		table = DefaultTable
	}
	return &Repo{q: q, table: pgx.Identifier{table}.Sanitize(), dim: dim}
}

// Ping checks database connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.q.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return nil
}

// Query returns the topK nearest reviews. Ties on distance are broken by id,
// integer ids numerically and ahead of the rest.
func (r *Repo) Query(
	ctx context.Context, embedding []float32, topK int, filters filter.Expression,
) ([]domreview.Hit, error) {
	sql, args := r.buildQuery(embedding, topK, filters)

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, &db.Error{Op: db.OpSelect, Err: err})
	}
	defer rows.Close()

	var hits []domreview.Hit
	for rows.Next() {
		var (
			id, content      string
			tagsRaw, numsRaw []byte
			similarity       float64
		)
		if err := rows.Scan(&id, &content, &tagsRaw, &numsRaw, &similarity); err != nil {
			return nil, fmt.Errorf("%w: scan review: %w", domain.ErrStore, err)
		}
		var tags map[string]string
		if err := unmarshalOptional(tagsRaw, &tags); err != nil {
			return nil, fmt.Errorf("%w: review %s tags: %w", domain.ErrStore, id, err)
		}
		var nums map[string]float64
		if err := unmarshalOptional(numsRaw, &nums); err != nil {
			return nil, fmt.Errorf("%w: review %s numerics: %w", domain.ErrStore, id, err)
		}
		hits = append(hits, domreview.Hit{
			Review:     domreview.Reconstruct(id, content, tags, nums, nil),
			Similarity: similarity,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, &db.Error{Op: db.OpSelect, Err: err})
	}
	return hits, nil
}

// orderByID mirrors result.CompareIDs: integer ids first in numeric order,
// then the rest as strings.
const orderByID = `(id ~ '^[-+]?[0-9]{1,18}$') DESC, ` +
	`CASE WHEN id ~ '^[-+]?[0-9]{1,18}$' THEN id::bigint END, id`

// buildQuery renders the KNN statement. $1 is the query vector, $2 the limit;
// filter keys and values are bound as parameters.
func (r *Repo) buildQuery(embedding []float32, topK int, filters filter.Expression) (string, []any) {
	args := []any{pgvector.NewVector(embedding), topK}
	param := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	var where []string
	for _, c := range filters.Conditions() {
		if c.IsMatch() {
			where = append(where, fmt.Sprintf("tags->>%s = %s", param(c.Key()), param(c.Match())))
			continue
		}
		col := fmt.Sprintf("(numerics->>%s)::float8", param(c.Key()))
		rg := c.Range()
		if rg.GT() != nil {
			where = append(where, col+" > "+param(*rg.GT()))
		}
		if rg.GTE() != nil {
			where = append(where, col+" >= "+param(*rg.GTE()))
		}
		if rg.LT() != nil {
			where = append(where, col+" < "+param(*rg.LT()))
		}
		if rg.LTE() != nil {
			where = append(where, col+" <= "+param(*rg.LTE()))
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT id, content, tags, numerics, 1 - (embedding <=> $1) AS similarity FROM ")
	sb.WriteString(r.table)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY embedding <=> $1, " + orderByID + " LIMIT $2")
	return sb.String(), args
}

// Upsert inserts or replaces reviews with their embeddings.
func (r *Repo) Upsert(ctx context.Context, reviews []domreview.Review) error {
	sql := "INSERT INTO " + r.table + ` (id, content, tags, numerics, embedding)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, tags = EXCLUDED.tags,
numerics = EXCLUDED.numerics, embedding = EXCLUDED.embedding`

	for _, rv := range reviews {
		if err := domain.CheckVector(rv.Embedding(), r.dim); err != nil {
			return fmt.Errorf("review %s: %w", rv.ID(), err)
		}
		tags, err := json.Marshal(nonNilTags(rv.Tags()))
		if err != nil {
			return fmt.Errorf("review %s tags: %w", rv.ID(), err)
		}
		nums, err := json.Marshal(nonNilNumerics(rv.Numerics()))
		if err != nil {
			return fmt.Errorf("review %s numerics: %w", rv.ID(), err)
		}
		if _, err := r.q.Exec(ctx, sql, rv.ID(), rv.Text(), tags, nums, pgvector.NewVector(rv.Embedding())); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStore, &db.Error{Op: db.OpUpsert, Err: fmt.Errorf("review %s: %w", rv.ID(), err)})
		}
	}
	return nil
}

// EnsureIndex creates the extension, table and HNSW cosine index when missing.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	if r.dim <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", r.dim)
	}
	idxName := pgx.Identifier{strings.Trim(r.table, `"`) + "_embedding_idx"}.Sanitize()
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
id text PRIMARY KEY,
content text NOT NULL,
tags jsonb NOT NULL DEFAULT '{}',
numerics jsonb NOT NULL DEFAULT '{}',
embedding vector(%d) NOT NULL)`, r.table, r.dim),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)", idxName, r.table),
	}
	for _, s := range stmts {
		if _, err := r.q.Exec(ctx, s); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStore, &db.Error{Op: db.OpSchema, Err: err})
		}
	}
	return nil
}

func unmarshalOptional(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v) //nolint:wrapcheck // caller adds context
}

func nonNilTags(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nonNilNumerics(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}
