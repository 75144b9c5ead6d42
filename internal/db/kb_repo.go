package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/AbdouB/kbexpert/internal/models"
)

// KnowledgeBaseSummary is a catalog row without the full document
type KnowledgeBaseSummary struct {
	ID               string   `json:"id" db:"id"`
	Name             string   `json:"name" db:"name"`
	Location         *string  `json:"location,omitempty" db:"location"`
	SignCount        int      `json:"sign_count" db:"sign_count"`
	HypothesisCount  int      `json:"hypothesis_count" db:"hypothesis_count"`
	CreatedTimestamp float64  `json:"created_timestamp" db:"created_timestamp"`
	UpdatedTimestamp *float64 `json:"updated_timestamp,omitempty" db:"updated_timestamp"`
}

// KnowledgeBaseRepository handles knowledge base database operations
type KnowledgeBaseRepository struct {
	db *DB
}

// NewKnowledgeBaseRepository creates a new knowledge base repository
func NewKnowledgeBaseRepository(db *DB) *KnowledgeBaseRepository {
	return &KnowledgeBaseRepository{db: db}
}

// Create stores a new knowledge base
func (r *KnowledgeBaseRepository) Create(kb *models.KnowledgeBase) error {
	kbData, err := json.Marshal(kb)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO knowledge_bases (
			id, name, location, sign_count, hypothesis_count,
			created_timestamp, updated_timestamp, kb_data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		kb.ID,
		kb.Name,
		nullString(kb.Location),
		len(kb.Signs),
		len(kb.Hypos),
		kb.CreatedTimestamp,
		kb.UpdatedTimestamp,
		string(kbData),
	)
	return err
}

// Get retrieves a knowledge base by ID
func (r *KnowledgeBaseRepository) Get(id string) (*models.KnowledgeBase, error) {
	return r.getBy(`SELECT kb_data FROM knowledge_bases WHERE id = ?`, id)
}

// GetByName retrieves a knowledge base by name
func (r *KnowledgeBaseRepository) GetByName(name string) (*models.KnowledgeBase, error) {
	return r.getBy(`SELECT kb_data FROM knowledge_bases WHERE name = ?`, name)
}

func (r *KnowledgeBaseRepository) getBy(query string, arg string) (*models.KnowledgeBase, error) {
	var kbData string
	err := r.db.Get(&kbData, query, arg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var kb models.KnowledgeBase
	if err := json.Unmarshal([]byte(kbData), &kb); err != nil {
		return nil, fmt.Errorf("failed to decode knowledge base: %w", err)
	}
	kb.Reset()
	return &kb, nil
}

// List lists knowledge bases by name
func (r *KnowledgeBaseRepository) List(limit int) ([]*KnowledgeBaseSummary, error) {
	var out []*KnowledgeBaseSummary
	query := `SELECT id, name, location, sign_count, hypothesis_count, created_timestamp, updated_timestamp
	          FROM knowledge_bases ORDER BY name ASC LIMIT ?`
	if err := r.db.Select(&out, query, limit); err != nil {
		return nil, err
	}
	return out, nil
}

// Save writes the full document of an existing knowledge base
func (r *KnowledgeBaseRepository) Save(kb *models.KnowledgeBase) error {
	kb.Touch()
	kbData, err := json.Marshal(kb)
	if err != nil {
		return err
	}

	query := `
		UPDATE knowledge_bases SET
			name = ?,
			location = ?,
			sign_count = ?,
			hypothesis_count = ?,
			updated_timestamp = ?,
			kb_data = ?
		WHERE id = ?
	`
	res, err := r.db.Exec(query,
		kb.Name,
		nullString(kb.Location),
		len(kb.Signs),
		len(kb.Hypos),
		kb.UpdatedTimestamp,
		string(kbData),
		kb.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a knowledge base and, through the foreign key, its history
func (r *KnowledgeBaseRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM knowledge_bases WHERE id = ?`, id)
	return err
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
