package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/KadirKcbs/cobratoolbox/internal/model"
)

// SQLiteModelStore persists models in a single SQLite database. One row in
// models per stored model, with serialized metabolite/reaction lists and a
// triplet table for the stoichiometry. SQLite works best with a single
// writer, which matches the strictly sequential driver loop.
type SQLiteModelStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS models (
	key         TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	name        TEXT NOT NULL,
	metabolites TEXT NOT NULL,
	reactions   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS stoichiometry (
	model_key TEXT NOT NULL REFERENCES models(key) ON DELETE CASCADE,
	met_idx   INTEGER NOT NULL,
	rxn_idx   INTEGER NOT NULL,
	coef      REAL NOT NULL,
	PRIMARY KEY (model_key, met_idx, rxn_idx)
);
`

// NewSQLiteModelStore opens (and initializes) the model database at
// dir/models.db.
func NewSQLiteModelStore(dir string) (*SQLiteModelStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sqlite model store: create %s: %w", dir, err)
	}
	dbPath := filepath.Join(dir, "models.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("sqlite model store: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite model store: initialize schema: %w", err)
	}
	return &SQLiteModelStore{db: db}, nil
}

// LoadOrganism implements ModelStore.
func (s *SQLiteModelStore) LoadOrganism(ctx context.Context, name string) (*model.Model, error) {
	return s.load(ctx, organismKey(name))
}

// SaveOrganism implements ModelStore.
func (s *SQLiteModelStore) SaveOrganism(ctx context.Context, name string, m *model.Model) error {
	return s.save(ctx, organismKey(name), "organism", m)
}

// SaveCommunity implements ModelStore.
func (s *SQLiteModelStore) SaveCommunity(ctx context.Context, sampleID string, m *model.Model, hostCoupled bool) error {
	return s.save(ctx, communityKey(sampleID, hostCoupled), "community", m)
}

// LoadCommunity implements ModelStore.
func (s *SQLiteModelStore) LoadCommunity(ctx context.Context, sampleID string, hostCoupled bool) (*model.Model, error) {
	return s.load(ctx, communityKey(sampleID, hostCoupled))
}

// HasCommunity implements ModelStore.
func (s *SQLiteModelStore) HasCommunity(ctx context.Context, sampleID string, hostCoupled bool) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM models WHERE key = ?`, communityKey(sampleID, hostCoupled)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite model store: %w", err)
	}
	return n > 0, nil
}

// Close implements ModelStore.
func (s *SQLiteModelStore) Close() error {
	return s.db.Close()
}

func organismKey(name string) string { return "organism/" + name }

func communityKey(sampleID string, hostCoupled bool) string {
	if hostCoupled {
		return "community/" + sampleID + "/host"
	}
	return "community/" + sampleID
}

func (s *SQLiteModelStore) save(ctx context.Context, key, kind string, m *model.Model) error {
	enc := encodeModel(m)
	mets, err := json.Marshal(enc.Metabolites)
	if err != nil {
		return fmt.Errorf("sqlite model store: encode metabolites: %w", err)
	}
	rxns, err := json.Marshal(enc.Reactions)
	if err != nil {
		return fmt.Errorf("sqlite model store: encode reactions: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite model store: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM models WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite model store: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO models (key, kind, name, metabolites, reactions) VALUES (?, ?, ?, ?, ?)`,
		key, kind, m.Name, string(mets), string(rxns)); err != nil {
		return fmt.Errorf("sqlite model store: insert model: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO stoichiometry (model_key, met_idx, rxn_idx, coef) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite model store: %w", err)
	}
	defer stmt.Close()
	for _, e := range enc.Stoich {
		if _, err := stmt.ExecContext(ctx, key, e.Met, e.Rxn, e.Coef); err != nil {
			return fmt.Errorf("sqlite model store: insert coefficient: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite model store: commit: %w", err)
	}
	return nil
}

func (s *SQLiteModelStore) load(ctx context.Context, key string) (*model.Model, error) {
	var enc modelJSON
	var mets, rxns string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, metabolites, reactions FROM models WHERE key = ?`, key).
		Scan(&enc.Name, &mets, &rxns)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sqlite model store: %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite model store: %w", err)
	}
	if err := json.Unmarshal([]byte(mets), &enc.Metabolites); err != nil {
		return nil, fmt.Errorf("sqlite model store: parse metabolites: %w", err)
	}
	if err := json.Unmarshal([]byte(rxns), &enc.Reactions); err != nil {
		return nil, fmt.Errorf("sqlite model store: parse reactions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT met_idx, rxn_idx, coef FROM stoichiometry WHERE model_key = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("sqlite model store: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e stoichEntry
		if err := rows.Scan(&e.Met, &e.Rxn, &e.Coef); err != nil {
			return nil, fmt.Errorf("sqlite model store: %w", err)
		}
		enc.Stoich = append(enc.Stoich, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite model store: %w", err)
	}

	m, err := decodeModel(enc)
	if err != nil {
		return nil, fmt.Errorf("sqlite model store: %s: %w", key, err)
	}
	return m, nil
}
