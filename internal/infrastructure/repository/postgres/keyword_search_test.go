package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dkoval/knowbase/internal/core/domain"
)

func newKeywordSearchWithMock(t *testing.T) (*KeywordSearch, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &KeywordSearch{db: db}, mock, func() { _ = db.Close() }
}

func TestKeywordRetrieveMapsHits(t *testing.T) {
	search, mock, done := newKeywordSearchWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"document_id", "chunk_index", "title", "content", "rank"}).
		AddRow("doc-1", 2, "Runbook", "restart the worker", 0.61).
		AddRow("doc-2", 0, "FAQ", "faq entry", 0.42)

	mock.ExpectQuery("SELECT document_id, chunk_index, title, content").
		WithArgs("restart", 5, "kb-1").
		WillReturnRows(rows)

	candidates, err := search.Retrieve(context.Background(), "restart", 5, domain.SearchFilter{KnowledgeBaseID: "kb-1"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	first := candidates[0]
	if first.ItemID != "doc-1:2" || first.Source != domain.SourceKeyword {
		t.Fatalf("identity mapping broken: %+v", first)
	}
	if first.Rank != 1 || first.RawScore != 0.61 {
		t.Fatalf("rank mapping broken: %+v", first)
	}
	if candidates[1].Rank != 2 {
		t.Fatalf("ranks must be dense, got %+v", candidates[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestKeywordRetrieveWithoutFilterOmitsKBArg(t *testing.T) {
	search, mock, done := newKeywordSearchWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT document_id, chunk_index, title, content").
		WithArgs("q", 3).
		WillReturnRows(sqlmock.NewRows([]string{"document_id", "chunk_index", "title", "content", "rank"}))

	candidates, err := search.Retrieve(context.Background(), "q", 3, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %d", len(candidates))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestKeywordRetrieveQueryErrorIsRetrieverUnavailable(t *testing.T) {
	search, mock, done := newKeywordSearchWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT document_id, chunk_index, title, content").
		WithArgs("q", 3).
		WillReturnError(errors.New("connection reset"))

	_, err := search.Retrieve(context.Background(), "q", 3, domain.SearchFilter{})
	if !domain.IsKind(err, domain.ErrRetrieverUnavailable) {
		t.Fatalf("expected ErrRetrieverUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestIndexChunksReplacesExistingRows(t *testing.T) {
	search, mock, done := newKeywordSearchWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM document_chunks").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO document_chunks").
		WithArgs("doc-1", 0, "kb-1", "Runbook", "chunk one").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_chunks").
		WithArgs("doc-1", 1, "kb-1", "Runbook", "chunk two").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	doc := &domain.Document{ID: "doc-1", KnowledgeBaseID: "kb-1", Title: "Runbook"}
	if err := search.IndexChunks(context.Background(), doc, []string{"chunk one", "chunk two"}); err != nil {
		t.Fatalf("IndexChunks() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
