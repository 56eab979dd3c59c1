package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/fraga/KnowledgeNexus/internal/models"
	"github.com/fraga/KnowledgeNexus/pkg/logger"
)

// Client archives processed documents. The graph holds the resolved
// knowledge; this is the record of what each run produced, failures included.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		file_name TEXT,
		content_type TEXT NOT NULL,
		conversion_status TEXT NOT NULL,
		raw_text TEXT,
		description TEXT,
		summary TEXT,
		entities TEXT,
		error_message TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(conversion_status);
	CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertDocument(doc *models.Document) error {
	entitiesJSON, err := json.Marshal(doc.Entities)
	if err != nil {
		return fmt.Errorf("failed to marshal entities: %w", err)
	}

	query := `
		INSERT INTO documents (id, file_name, content_type, conversion_status, raw_text,
			description, summary, entities, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			conversion_status = excluded.conversion_status,
			raw_text = excluded.raw_text,
			description = excluded.description,
			summary = excluded.summary,
			entities = excluded.entities,
			error_message = excluded.error_message
	`

	_, err = c.db.Exec(
		query,
		doc.ID,
		doc.FileName,
		string(doc.ContentType),
		string(doc.ConversionStatus),
		doc.RawText,
		doc.Description,
		doc.Summary,
		string(entitiesJSON),
		doc.ErrorMessage,
		doc.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	logger.Debug("Document archived", zap.String("doc_id", doc.ID))
	return nil
}

func (c *Client) GetDocument(id string) (*models.Document, error) {
	query := `
		SELECT id, file_name, content_type, conversion_status, raw_text,
			description, summary, entities, error_message, created_at
		FROM documents WHERE id = ?
	`

	doc, err := scanDocument(c.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (c *Client) ListDocuments(limit int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, file_name, content_type, conversion_status, raw_text,
			description, summary, entities, error_message, created_at
		FROM documents
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc          models.Document
		contentType  string
		status       string
		entitiesJSON string
		createdAt    int64
	)

	err := row.Scan(
		&doc.ID,
		&doc.FileName,
		&contentType,
		&status,
		&doc.RawText,
		&doc.Description,
		&doc.Summary,
		&entitiesJSON,
		&doc.ErrorMessage,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	doc.ContentType = models.ContentType(contentType)
	doc.ConversionStatus = models.ConversionStatus(status)
	doc.CreatedAt = time.Unix(createdAt, 0)
	if entitiesJSON != "" {
		if err := json.Unmarshal([]byte(entitiesJSON), &doc.Entities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entities: %w", err)
		}
	}
	if doc.Entities == nil {
		doc.Entities = []models.EntityRef{}
	}
	return &doc, nil
}
