package db

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/AbdouB/kbexpert/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "nested", "kb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func sampleKB(t *testing.T, name string) *models.KnowledgeBase {
	t.Helper()
	kb := models.NewKnowledgeBase(name)
	s := kb.AddSign()
	s.Name = "Fever"
	s.Question = "Do you have a fever?"
	h := kb.AddHypos()
	h.Name = "Flu"
	_, err := kb.Link(h.ID, s.ID, 0.9, 0.2)
	require.NoError(t, err)
	return kb
}

func TestOpen_CreatesDirectoryAndSchema(t *testing.T) {
	d := openTestDB(t)
	assert.FileExists(t, d.Path())

	var n int
	require.NoError(t, d.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('knowledge_bases', 'consultations')`))
	assert.Equal(t, 2, n)

	// migrations are idempotent
	again, err := Open(d.Path())
	require.NoError(t, err)
	again.Close()
}

func TestKnowledgeBaseRepository_RoundTrip(t *testing.T) {
	repo := NewKnowledgeBaseRepository(openTestDB(t))
	kb := sampleKB(t, "respiratory")
	require.NoError(t, repo.Create(kb))

	got, err := repo.GetByName("respiratory")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, kb.ID, got.ID)
	require.Len(t, got.Hypos, 1)
	require.Len(t, got.Hypos[0].Signs, 1)
	assert.Equal(t, 0.9, got.Hypos[0].Signs[0].PPos())
	assert.Equal(t, got.Hypos[0].InitP, got.Hypos[0].P, "run state is reset on load")

	byID, err := repo.Get(kb.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fever", byID.Signs[0].Name)
}

func TestKnowledgeBaseRepository_MissingReturnsNil(t *testing.T) {
	repo := NewKnowledgeBaseRepository(openTestDB(t))

	got, err := repo.GetByName("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestKnowledgeBaseRepository_UniqueName(t *testing.T) {
	repo := NewKnowledgeBaseRepository(openTestDB(t))
	require.NoError(t, repo.Create(sampleKB(t, "dup")))
	assert.Error(t, repo.Create(sampleKB(t, "dup")))
}

func TestKnowledgeBaseRepository_SaveAndList(t *testing.T) {
	repo := NewKnowledgeBaseRepository(openTestDB(t))
	kb := sampleKB(t, "b-base")
	require.NoError(t, repo.Create(kb))
	require.NoError(t, repo.Create(sampleKB(t, "a-base")))

	kb.Name = "c-base"
	kb.AddSign()
	require.NoError(t, repo.Save(kb))
	require.NotNil(t, kb.UpdatedTimestamp)

	list, err := repo.List(10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a-base", list[0].Name)
	assert.Equal(t, "c-base", list[1].Name)
	assert.Equal(t, 2, list[1].SignCount)
	assert.Equal(t, 1, list[1].HypothesisCount)

	ghost := models.NewKnowledgeBase("ghost")
	assert.ErrorIs(t, repo.Save(ghost), sql.ErrNoRows)
}

func TestConsultationRepository(t *testing.T) {
	d := openTestDB(t)
	kbRepo := NewKnowledgeBaseRepository(d)
	repo := NewConsultationRepository(d)

	kb := sampleKB(t, "respiratory")
	require.NoError(t, kbRepo.Create(kb))

	c := models.NewConsultation(kb, models.ModeScripted)
	winner := kb.Hypos[0]
	winner.P = 0.9
	steps := []models.StepRecord{{
		Index:      0,
		SignID:     0,
		Question:   "Do you have a fever?",
		AnswerCode: 4,
		Answer:     true,
		R:          1,
		Stop:       true,
		States:     []models.HypothesisState{models.StateOf(winner, false)},
	}}
	c.Finish(winner, steps, steps[0].States)
	require.NoError(t, repo.Create(c))

	got, err := repo.Get(c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, 4, got.Steps[0].AnswerCode)
	require.NotNil(t, got.WinnerDesc)
	assert.Equal(t, winner.Desc, *got.WinnerDesc)

	list, err := repo.ListByKnowledgeBase(kb.ID, 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Flu", *list[0].WinnerName)
	assert.Equal(t, 1, list[0].StepCount)
	assert.Empty(t, list[0].Steps)

	missing, err := repo.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// deleting the knowledge base drops its history
	require.NoError(t, kbRepo.Delete(kb.ID))
	list, err = repo.ListByKnowledgeBase(kb.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, list)
}
