package storage

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/facegate/internal/config"
	"github.com/your-org/facegate/internal/embedding"
	"github.com/your-org/facegate/internal/match"
	"github.com/your-org/facegate/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
	dim  int
}

func NewPostgresStore(cfg config.DatabaseConfig, embeddingDim int) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool, dim: embeddingDim}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the tables and the pgvector extension if they
// don't exist. The embedding column dimension is fixed at store
// construction and never changes for a deployment.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS identities (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			slot_number INT NOT NULL CHECK (slot_number > 0),
			embedding vector(%d),
			image_key TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, slot_number) DEFERRABLE INITIALLY DEFERRED
		)`, s.dim),
		`CREATE TABLE IF NOT EXISTS auth_events (
			id UUID PRIMARY KEY,
			kind TEXT NOT NULL,
			outcome TEXT NOT NULL,
			user_id UUID,
			identity_id UUID,
			similarity DOUBLE PRECISION NOT NULL DEFAULT 0,
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS auth_events_created_idx ON auth_events (created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	u := &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		Active:       true,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3) RETURNING created_at`,
		u.ID, u.Username, u.PasswordHash,
	).Scan(&u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u := &models.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, active, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Active, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u := &models.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, active, created_at FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Active, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

// --- Identities ---

// WithUserLock serializes enroll/remove for one user across all
// processes via a Postgres advisory lock held on a dedicated
// connection. Operations for different users are fully concurrent.
func (s *PostgresStore) WithUserLock(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	key := userLockKey(userID)
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, key); err != nil {
		return fmt.Errorf("acquire user lock: %w", err)
	}
	defer func() {
		// Unlock on the same session, even if ctx is done.
		_, _ = conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, key)
	}()

	return fn(ctx)
}

func userLockKey(userID uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write(userID[:])
	return int64(h.Sum64())
}

func (s *PostgresStore) CountIdentities(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM identities WHERE user_id = $1`, userID,
	).Scan(&count)
	return count, err
}

func (s *PostgresStore) InsertIdentity(ctx context.Context, identity *models.Identity) error {
	vec := pgvector.NewVector(identity.Embedding)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO identities (id, user_id, slot_number, embedding, image_key)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		identity.ID, identity.UserID, identity.SlotNumber, vec, identity.ImageKey,
	).Scan(&identity.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	rec := &models.Identity{}
	var vec *pgvector.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, slot_number, embedding, image_key, created_at FROM identities WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.UserID, &rec.SlotNumber, &vec, &rec.ImageKey, &rec.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}
	if vec != nil {
		rec.Embedding = embedding.Vector(vec.Slice())
	}
	return rec, nil
}

func (s *PostgresStore) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("identity %s not found", id)
	}
	return nil
}

func (s *PostgresStore) IdentitiesForUser(ctx context.Context, userID uuid.UUID) ([]models.Identity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, slot_number, embedding, image_key, created_at
		 FROM identities WHERE user_id = $1 ORDER BY slot_number`, userID)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var recs []models.Identity
	for rows.Next() {
		var rec models.Identity
		var vec *pgvector.Vector
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.SlotNumber, &vec, &rec.ImageKey, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		if vec != nil {
			rec.Embedding = embedding.Vector(vec.Slice())
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *PostgresStore) UpdateSlotNumber(ctx context.Context, id uuid.UUID, slot int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE identities SET slot_number = $1 WHERE id = $2`, slot, id)
	if err != nil {
		return fmt.Errorf("update slot number: %w", err)
	}
	return nil
}

// AllCandidates streams every identity with a non-null embedding, in
// stable id order. Rows are yielded as they arrive so the matcher can
// start scanning before the full gallery is loaded.
func (s *PostgresStore) AllCandidates(ctx context.Context) match.Candidates {
	return func(yield func(match.Candidate, error) bool) {
		rows, err := s.pool.Query(ctx,
			`SELECT id, user_id, embedding FROM identities WHERE embedding IS NOT NULL ORDER BY id`)
		if err != nil {
			yield(match.Candidate{}, fmt.Errorf("query candidates: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var c match.Candidate
			var vec pgvector.Vector
			if err := rows.Scan(&c.IdentityID, &c.UserID, &vec); err != nil {
				yield(match.Candidate{}, fmt.Errorf("scan candidate: %w", err))
				return
			}
			c.Embedding = embedding.Vector(vec.Slice())
			if !yield(c, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(match.Candidate{}, fmt.Errorf("read candidates: %w", err))
		}
	}
}

// --- Auth events ---

func (s *PostgresStore) InsertAuthEvent(ctx context.Context, ev *models.AuthEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO auth_events (id, kind, outcome, user_id, identity_id, similarity, reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		ev.ID, ev.Kind, ev.Outcome, ev.UserID, ev.IdentityID, ev.Similarity, ev.Reason,
	).Scan(&ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAuthEvents(ctx context.Context, limit, offset int) ([]models.AuthEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, outcome, user_id, identity_id, similarity, reason, created_at
		 FROM auth_events ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list auth events: %w", err)
	}
	defer rows.Close()

	var events []models.AuthEvent
	for rows.Next() {
		var ev models.AuthEvent
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Outcome, &ev.UserID, &ev.IdentityID,
			&ev.Similarity, &ev.Reason, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan auth event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
