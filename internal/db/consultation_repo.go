package db

import (
	"database/sql"
	"encoding/json"

	"github.com/AbdouB/kbexpert/internal/models"
)

// ConsultationRepository handles consultation history
type ConsultationRepository struct {
	db *DB
}

// NewConsultationRepository creates a new consultation repository
func NewConsultationRepository(db *DB) *ConsultationRepository {
	return &ConsultationRepository{db: db}
}

// Create stores a consultation
func (r *ConsultationRepository) Create(c *models.Consultation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	c.ConsultationData = string(data)

	query := `
		INSERT INTO consultations (
			id, knowledge_base_id, knowledge_base_name, mode, started_timestamp,
			finished_timestamp, winner_id, winner_name, winner_p, step_count, consultation_data
		) VALUES (
			:id, :knowledge_base_id, :knowledge_base_name, :mode, :started_timestamp,
			:finished_timestamp, :winner_id, :winner_name, :winner_p, :step_count, :consultation_data
		)
	`
	_, err = r.db.NamedExec(query, c)
	return err
}

// Get retrieves a consultation with its steps
func (r *ConsultationRepository) Get(id string) (*models.Consultation, error) {
	var data string
	err := r.db.Get(&data, `SELECT consultation_data FROM consultations WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var c models.Consultation
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByKnowledgeBase lists consultations of a knowledge base, newest first.
// Steps are not loaded.
func (r *ConsultationRepository) ListByKnowledgeBase(kbID string, limit int) ([]*models.Consultation, error) {
	var out []*models.Consultation
	query := `
		SELECT id, knowledge_base_id, knowledge_base_name, mode, started_timestamp,
		       finished_timestamp, winner_id, winner_name, winner_p, step_count
		FROM consultations
		WHERE knowledge_base_id = ?
		ORDER BY started_timestamp DESC
		LIMIT ?
	`
	if err := r.db.Select(&out, query, kbID, limit); err != nil {
		return nil, err
	}
	return out, nil
}
