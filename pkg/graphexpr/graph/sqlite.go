package graph

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Store errors.
var (
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("graph store is closed")

	// ErrGraphNotFound is returned when loading a graph that was never saved.
	ErrGraphNotFound = errors.New("graph not found")
)

// SQLiteStore persists Memgraph fixtures to SQLite.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// OpenSQLite opens or creates a fixture store.
// The path should be a file path or ":memory:" for testing.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A :memory: database is per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS enums (
			graph TEXT NOT NULL,
			kind TEXT NOT NULL,
			code INTEGER NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (graph, kind, code)
		)`,
		`CREATE TABLE IF NOT EXISTS vertices (
			graph TEXT NOT NULL,
			seq INTEGER NOT NULL,
			id TEXT NOT NULL,
			type TEXT NOT NULL,
			created INTEGER NOT NULL,
			modified INTEGER NOT NULL,
			expires INTEGER NOT NULL,
			c1 REAL NOT NULL,
			c0 REAL NOT NULL,
			virtual INTEGER NOT NULL,
			vector BLOB,
			props TEXT NOT NULL,
			PRIMARY KEY (graph, id)
		)`,
		`CREATE TABLE IF NOT EXISTS arcs (
			graph TEXT NOT NULL,
			seq INTEGER NOT NULL,
			tail TEXT NOT NULL,
			head TEXT NOT NULL,
			rel TEXT NOT NULL,
			mod INTEGER NOT NULL,
			value REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_arcs_graph ON arcs(graph)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Save replaces the stored copy of g.
func (s *SQLiteStore) Save(g *Memgraph) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	name := g.Name()
	for _, table := range []string{"enums", "vertices", "arcs"} {
		if _, err = tx.Exec("DELETE FROM "+table+" WHERE graph = ?", name); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for kind, names := range map[string][]string{"rel": g.Rels(), "type": g.Types()} {
		for code, n := range names {
			if _, err = tx.Exec(`INSERT INTO enums (graph, kind, code, name) VALUES (?, ?, ?, ?)`,
				name, kind, code, n); err != nil {
				return fmt.Errorf("save enum: %w", err)
			}
		}
	}

	for seq, v := range g.Vertices() {
		props, jerr := json.Marshal(v.props)
		if jerr != nil {
			err = fmt.Errorf("encode props of %s: %w", v.id, jerr)
			return err
		}
		var blob []byte
		if vec := v.Vector(); vec != nil {
			blob = encodeElements(vec.Elements())
		}
		if _, err = tx.Exec(`
			INSERT INTO vertices (graph, seq, id, type, created, modified, expires, c1, c0, virtual, vector, props)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, name, seq, v.id, v.typ, v.created, v.modified, v.expires, v.c1, v.c0, v.virtual, blob, string(props)); err != nil {
			return fmt.Errorf("save vertex %s: %w", v.id, err)
		}
	}

	for seq, a := range g.AllArcs() {
		if _, err = tx.Exec(`
			INSERT INTO arcs (graph, seq, tail, head, rel, mod, value)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, name, seq, a.Tail.ID(), a.Head.ID(), a.Rel, int(a.Mod), a.Value); err != nil {
			return fmt.Errorf("save arc: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Load rebuilds the named graph. newVector may be nil when no vertex has a vector.
func (s *SQLiteStore) Load(name string, newVector VectorFactory) (*Memgraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	g := NewMemgraph(name)

	rows, err := s.db.Query(`SELECT kind, name FROM enums WHERE graph = ? ORDER BY kind, code`, name)
	if err != nil {
		return nil, fmt.Errorf("load enums: %w", err)
	}
	for rows.Next() {
		var kind, n string
		if err := rows.Scan(&kind, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan enum: %w", err)
		}
		if kind == "rel" {
			g.DefineRel(n)
		} else {
			g.DefineType(n)
		}
	}
	rows.Close()

	vrows, err := s.db.Query(`
		SELECT id, type, created, modified, expires, c1, c0, virtual, vector, props
		FROM vertices WHERE graph = ? ORDER BY seq
	`, name)
	if err != nil {
		return nil, fmt.Errorf("load vertices: %w", err)
	}
	found := false
	for vrows.Next() {
		found = true
		var spec VertexSpec
		var blob []byte
		var props string
		if err := vrows.Scan(&spec.ID, &spec.Type, &spec.CreatedAt, &spec.ModifiedAt, &spec.ExpiresAt,
			&spec.C1, &spec.C0, &spec.Virtual, &blob, &props); err != nil {
			vrows.Close()
			return nil, fmt.Errorf("scan vertex: %w", err)
		}
		if err := json.Unmarshal([]byte(props), &spec.Props); err != nil {
			vrows.Close()
			return nil, fmt.Errorf("decode props of %s: %w", spec.ID, err)
		}
		if len(blob) > 0 && newVector != nil {
			spec.Vector = newVector(decodeElements(blob))
		}
		if _, err := g.AddVertex(spec); err != nil {
			vrows.Close()
			return nil, err
		}
	}
	vrows.Close()
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrGraphNotFound, name)
	}

	arows, err := s.db.Query(`SELECT tail, head, rel, mod, value FROM arcs WHERE graph = ? ORDER BY seq`, name)
	if err != nil {
		return nil, fmt.Errorf("load arcs: %w", err)
	}
	defer arows.Close()
	for arows.Next() {
		var tail, head, rel string
		var mod int
		var value float64
		if err := arows.Scan(&tail, &head, &rel, &mod, &value); err != nil {
			return nil, fmt.Errorf("scan arc: %w", err)
		}
		if _, err := g.Connect(tail, head, rel, Modifier(mod), value); err != nil {
			return nil, err
		}
	}
	return g, arows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func encodeElements(elems []float32) []byte {
	buf := make([]byte, 4*len(elems))
	for i, f := range elems {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeElements(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return out
}
