package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"notebook-backend/internal/model"
	"notebook-backend/pkg/logger"
)

// SQLiteStorage keeps everything in a single sqlite database file.
type SQLiteStorage struct {
	path string
	db   *sql.DB
}

func NewSQLiteStorage(dataDir string) *SQLiteStorage {
	return &SQLiteStorage{path: filepath.Join(dataDir, "notebooks.db")}
}

func (s *SQLiteStorage) Init() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	db, err := sql.Open("sqlite3", s.path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}
	s.db = db

	if err := s.migrate(); err != nil {
		db.Close()
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Infof("SQLite storage initialized at %s", s.path)
	return nil
}

func (s *SQLiteStorage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS notebooks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		notebook_id TEXT NOT NULL REFERENCES notebooks(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		content TEXT NOT NULL,
		excerpt TEXT,
		url TEXT,
		created_at TIMESTAMP NOT NULL,
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sources_notebook ON sources(notebook_id);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		notebook_id TEXT NOT NULL REFERENCES notebooks(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_notebook ON messages(notebook_id);

	CREATE TABLE IF NOT EXISTS presentations (
		id TEXT PRIMARY KEY,
		notebook_id TEXT,
		title TEXT NOT NULL,
		slides TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_presentations_notebook ON presentations(notebook_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Backup writes a consistent copy of the database next to it.
func (s *SQLiteStorage) Backup() error {
	dir := filepath.Join(filepath.Dir(s.path), "backup")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	dst := filepath.Join(dir, fmt.Sprintf("notebooks_%d.db", time.Now().UnixNano()))
	if _, err := s.db.Exec(`VACUUM INTO ?`, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	logger.Infof("Backup completed: %s", dst)
	return nil
}

func (s *SQLiteStorage) CreateNotebook(notebook *model.Notebook) error {
	if err := validNotebook(notebook); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO notebooks (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		notebook.ID, notebook.Title, notebook.CreatedAt, notebook.UpdatedAt,
	); err != nil {
		return err
	}
	if err := insertChildren(tx, notebook); err != nil {
		return err
	}
	return tx.Commit()
}

func insertChildren(tx *sql.Tx, notebook *model.Notebook) error {
	for i, src := range notebook.Sources {
		if err := insertSource(tx, notebook.ID, &src, i); err != nil {
			return err
		}
	}
	for _, msg := range notebook.Messages {
		if err := insertMessage(tx, notebook.ID, &msg); err != nil {
			return err
		}
	}
	return nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertSource(db execer, notebookID string, src *model.Source, position int) error {
	_, err := db.Exec(
		`INSERT INTO sources (id, notebook_id, name, content, excerpt, url, created_at, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID, notebookID, src.Name, src.Content, src.Excerpt, src.URL, src.CreatedAt, position,
	)
	return err
}

func insertMessage(db execer, notebookID string, msg *model.Message) error {
	_, err := db.Exec(
		`INSERT INTO messages (id, notebook_id, role, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, notebookID, msg.Role, msg.Content, msg.Timestamp,
	)
	return err
}

func (s *SQLiteStorage) GetNotebook(notebookID string) (*model.Notebook, error) {
	var n model.Notebook
	err := s.db.QueryRow(
		`SELECT id, title, created_at, updated_at FROM notebooks WHERE id = ?`, notebookID,
	).Scan(&n.ID, &n.Title, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotebookNotFound
	}
	if err != nil {
		return nil, err
	}

	if n.Sources, err = s.sources(notebookID); err != nil {
		return nil, err
	}
	if n.Messages, err = s.messages(notebookID); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *SQLiteStorage) sources(notebookID string) ([]model.Source, error) {
	rows, err := s.db.Query(
		`SELECT id, notebook_id, name, content, COALESCE(excerpt, ''), COALESCE(url, ''), created_at
		 FROM sources WHERE notebook_id = ? ORDER BY position, created_at`, notebookID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []model.Source
	for rows.Next() {
		var src model.Source
		if err := rows.Scan(&src.ID, &src.NotebookID, &src.Name, &src.Content, &src.Excerpt, &src.URL, &src.CreatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func (s *SQLiteStorage) messages(notebookID string) ([]model.Message, error) {
	rows, err := s.db.Query(
		`SELECT id, notebook_id, role, content, timestamp FROM messages WHERE notebook_id = ? ORDER BY seq`,
		notebookID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(&msg.ID, &msg.NotebookID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// UpdateNotebook replaces the notebook row and its sources and messages.
func (s *SQLiteStorage) UpdateNotebook(notebook *model.Notebook) error {
	if err := validNotebook(notebook); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE notebooks SET title = ?, updated_at = ? WHERE id = ?`,
		notebook.Title, notebook.UpdatedAt, notebook.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotebookNotFound
	}

	if _, err := tx.Exec(`DELETE FROM sources WHERE notebook_id = ?`, notebook.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM messages WHERE notebook_id = ?`, notebook.ID); err != nil {
		return err
	}
	if err := insertChildren(tx, notebook); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) DeleteNotebook(notebookID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM notebooks WHERE id = ?`, notebookID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotebookNotFound
	}
	if _, err := tx.Exec(`DELETE FROM presentations WHERE notebook_id = ?`, notebookID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) ListNotebooks() ([]*model.Notebook, error) {
	rows, err := s.db.Query(`SELECT id FROM notebooks ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	notebooks := make([]*model.Notebook, 0, len(ids))
	for _, id := range ids {
		n, err := s.GetNotebook(id)
		if err != nil {
			return nil, err
		}
		notebooks = append(notebooks, n)
	}
	return notebooks, nil
}

func (s *SQLiteStorage) touch(db execer, notebookID string) error {
	res, err := db.Exec(`UPDATE notebooks SET updated_at = ? WHERE id = ?`, time.Now(), notebookID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotebookNotFound
	}
	return nil
}

func (s *SQLiteStorage) AddSource(notebookID string, source *model.Source) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.touch(tx, notebookID); err != nil {
		return err
	}
	var position int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM sources WHERE notebook_id = ?`, notebookID).Scan(&position); err != nil {
		return err
	}
	if err := insertSource(tx, notebookID, source, position); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) DeleteSource(notebookID, sourceID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.touch(tx, notebookID); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM sources WHERE id = ? AND notebook_id = ?`, sourceID, notebookID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSourceNotFound
	}
	return tx.Commit()
}

func (s *SQLiteStorage) AddMessage(notebookID string, message *model.Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.touch(tx, notebookID); err != nil {
		return err
	}
	if err := insertMessage(tx, notebookID, message); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) GetMessages(notebookID string) ([]*model.Message, error) {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM notebooks WHERE id = ?`, notebookID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrNotebookNotFound
	}
	messages, err := s.messages(notebookID)
	if err != nil {
		return nil, err
	}
	return messagePointers(messages), nil
}

func (s *SQLiteStorage) SavePresentation(p *model.Presentation) error {
	if p == nil || p.ID == "" {
		return ErrInvalidData
	}
	slides, err := json.Marshal(p.Slides)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO presentations (id, notebook_id, title, slides, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET notebook_id = excluded.notebook_id, title = excluded.title, slides = excluded.slides`,
		p.ID, p.NotebookID, p.Title, string(slides), p.CreatedAt,
	)
	return err
}

func (s *SQLiteStorage) GetPresentation(presentationID string) (*model.Presentation, error) {
	row := s.db.QueryRow(
		`SELECT id, COALESCE(notebook_id, ''), title, slides, created_at FROM presentations WHERE id = ?`,
		presentationID,
	)
	p, err := scanPresentation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPresentationNotFound
	}
	return p, err
}

func (s *SQLiteStorage) ListPresentations(notebookID string) ([]*model.Presentation, error) {
	query := `SELECT id, COALESCE(notebook_id, ''), title, slides, created_at FROM presentations`
	var args []any
	if notebookID != "" {
		query += ` WHERE notebook_id = ?`
		args = append(args, notebookID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Presentation
	for rows.Next() {
		p, err := scanPresentation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPresentation(row scanner) (*model.Presentation, error) {
	var p model.Presentation
	var slides string
	if err := row.Scan(&p.ID, &p.NotebookID, &p.Title, &slides, &p.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(slides), &p.Slides); err != nil {
		return nil, fmt.Errorf("%w: presentation %s: %v", ErrInvalidData, p.ID, err)
	}
	return &p, nil
}
