package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/taskmaster-ai/taskmaster/internal/tasks"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dataSourceName and
// makes sure the schema exists. Foreign keys and a busy timeout are enabled
// unless the DSN already sets them.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", withPragmas(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func withPragmas(dsn string) string {
	var params []string
	if !strings.Contains(dsn, "_foreign_keys") && !strings.Contains(dsn, "_fk=") {
		params = append(params, "_foreign_keys=on")
	}
	if !strings.Contains(dsn, "_busy_timeout") {
		params = append(params, "_busy_timeout=5000")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// depends_on_id is advisory: no foreign key, so a dangling or cyclic
// reference from the model cannot fail an ingestion.
const schema = `
    CREATE TABLE IF NOT EXISTS source_documents (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        source_name TEXT NOT NULL,
        content_hash TEXT UNIQUE NOT NULL,
        processed_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS action_items (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        source_document_id INTEGER NOT NULL,
        task_data TEXT NOT NULL, -- JSON encoded task
        depends_on_id INTEGER,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (source_document_id) REFERENCES source_documents (id)
    );

    CREATE INDEX IF NOT EXISTS idx_action_items_source ON action_items (source_document_id);
    `

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SourceExists reports whether a document with contentHash was ingested.
func (s *SQLiteStore) SourceExists(ctx context.Context, contentHash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM source_documents WHERE content_hash = ?", contentHash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query source document: %w", err)
	}
	return true, nil
}

// InsertSourceWithTasks stores a source document and all of its tasks in one
// transaction. Either everything is written or nothing is. A content hash
// that already exists yields ErrDuplicateSource.
func (s *SQLiteStore) InsertSourceWithTasks(ctx context.Context, sourceName, contentHash string, tl tasks.TaskList) (*SourceDocument, []ActionItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		"INSERT INTO source_documents (source_name, content_hash, processed_at) VALUES (?, ?, ?)",
		sourceName, contentHash, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil, ErrDuplicateSource
		}
		return nil, nil, fmt.Errorf("failed to insert source document: %w", err)
	}
	docID, err := res.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read source document id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO action_items (source_document_id, task_data, depends_on_id, created_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to prepare action item insert: %w", err)
	}
	defer stmt.Close()

	items := make([]ActionItem, 0, len(tl))
	for i, task := range tl {
		data, err := json.Marshal(task)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode task %d: %w", i, err)
		}
		res, err := stmt.ExecContext(ctx, docID, string(data), task.DependsOnID, now)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to insert action item %d: %w", i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read action item id: %w", err)
		}
		items = append(items, ActionItem{
			ID:               id,
			SourceDocumentID: docID,
			Task:             task,
			DependsOnID:      task.DependsOnID,
			CreatedAt:        now,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit ingestion: %w", err)
	}

	doc := &SourceDocument{ID: docID, SourceName: sourceName, ContentHash: contentHash, ProcessedAt: now}
	return doc, items, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

const actionItemColumns = "id, source_document_id, task_data, depends_on_id, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActionItem(row rowScanner) (ActionItem, error) {
	var item ActionItem
	var data string
	var dependsOn sql.NullInt64
	if err := row.Scan(&item.ID, &item.SourceDocumentID, &data, &dependsOn, &item.CreatedAt); err != nil {
		return ActionItem{}, err
	}
	if err := json.Unmarshal([]byte(data), &item.Task); err != nil {
		return ActionItem{}, fmt.Errorf("failed to decode task_data for action item %d: %w", item.ID, err)
	}
	if dependsOn.Valid {
		v := dependsOn.Int64
		item.DependsOnID = &v
	}
	return item, nil
}

// ListActionItems returns every action item, newest first.
func (s *SQLiteStore) ListActionItems(ctx context.Context) ([]ActionItem, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+actionItemColumns+" FROM action_items ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query action items: %w", err)
	}
	defer rows.Close()

	items := []ActionItem{}
	for rows.Next() {
		item, err := scanActionItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action item row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate action items: %w", err)
	}
	return items, nil
}

// GetActionItem returns nil, nil when the item does not exist.
func (s *SQLiteStore) GetActionItem(ctx context.Context, id int64) (*ActionItem, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+actionItemColumns+" FROM action_items WHERE id = ?", id)
	item, err := scanActionItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get action item: %w", err)
	}
	return &item, nil
}

// UpdateActionItem applies upd to the stored task and returns the result.
func (s *SQLiteStore) UpdateActionItem(ctx context.Context, id int64, upd TaskUpdate) (*ActionItem, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", tasks.ErrInvalidStatus, *upd.Status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, "SELECT "+actionItemColumns+" FROM action_items WHERE id = ?", id)
	item, err := scanActionItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load action item: %w", err)
	}

	if err := applyUpdate(&item.Task, upd); err != nil {
		return nil, err
	}
	item.DependsOnID = item.Task.DependsOnID

	data, err := json.Marshal(item.Task)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE action_items SET task_data = ?, depends_on_id = ? WHERE id = ?",
		string(data), item.DependsOnID, id); err != nil {
		return nil, fmt.Errorf("failed to update action item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit action item update: %w", err)
	}
	return &item, nil
}

func applyUpdate(t *tasks.Task, upd TaskUpdate) error {
	if upd.Description != nil {
		d := strings.TrimSpace(*upd.Description)
		if d == "" {
			return ErrEmptyDescription
		}
		t.Description = d
	}
	if upd.Project != nil {
		if p := strings.TrimSpace(*upd.Project); p != "" {
			t.Project = &p
		} else {
			t.Project = nil
		}
	}
	if upd.DueDate != nil {
		if d := strings.TrimSpace(*upd.DueDate); d != "" {
			d = tasks.NormalizeDate(d)
			t.DueDate = &d
		} else {
			t.DueDate = nil
		}
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.DependsOnID != nil {
		v := *upd.DependsOnID
		t.DependsOnID = &v
	}
	return nil
}

func (s *SQLiteStore) DeleteActionItem(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM action_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete action item: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSourceDocuments returns every ingested document, newest first.
func (s *SQLiteStore) ListSourceDocuments(ctx context.Context) ([]SourceDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, source_name, content_hash, processed_at FROM source_documents ORDER BY processed_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query source documents: %w", err)
	}
	defer rows.Close()

	docs := []SourceDocument{}
	for rows.Next() {
		var d SourceDocument
		if err := rows.Scan(&d.ID, &d.SourceName, &d.ContentHash, &d.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source document row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate source documents: %w", err)
	}
	return docs, nil
}

// Counts returns the number of source documents and action items.
func (s *SQLiteStore) Counts(ctx context.Context) (sources, items int, err error) {
	err = s.db.QueryRowContext(ctx,
		"SELECT (SELECT COUNT(*) FROM source_documents), (SELECT COUNT(*) FROM action_items)").Scan(&sources, &items)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return sources, items, nil
}

// DropAll deletes every table and recreates the empty schema.
func (s *SQLiteStore) DropAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS action_items; DROP TABLE IF EXISTS source_documents;"); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	if err := s.initSchema(ctx); err != nil {
		return fmt.Errorf("failed to recreate schema: %w", err)
	}
	return nil
}
