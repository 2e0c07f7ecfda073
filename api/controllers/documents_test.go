package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/draftforge-backend/internal/documents"
	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/draftforge-backend/pkg/errors"
)

type stubDocumentService struct {
	docs []models.Document
	doc  *models.Document
	err  error
}

func (s stubDocumentService) List(context.Context, uuid.UUID, uuid.UUID) ([]models.Document, error) {
	return s.docs, s.err
}

func (s stubDocumentService) Get(context.Context, uuid.UUID, uuid.UUID) (*models.Document, error) {
	return s.doc, s.err
}

func (s stubDocumentService) Delete(context.Context, uuid.UUID, uuid.UUID) error {
	return s.err
}

func TestGetDocumentRendersHTML(t *testing.T) {
	doc := &models.Document{
		ID:      uuid.New(),
		Type:    enums.DocumentTypePRD,
		Title:   "Product Requirements",
		Content: "# Overview\n\nShip it.",
		Status:  enums.DocumentStatusCompleted,
	}
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodGet, "/?format=html", "", uuid.New(), map[string]string{"documentId": doc.ID.String()})
	GetDocument(stubDocumentService{doc: doc}, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var dto documents.DocumentDTO
	decodeData(t, rec, &dto)
	if !strings.Contains(dto.HTML, "<h1>Overview</h1>") {
		t.Fatalf("expected rendered heading, got %q", dto.HTML)
	}
	if dto.Content != doc.Content {
		t.Fatalf("markdown content should be kept")
	}
}

func TestGetDocumentMarkdownByDefault(t *testing.T) {
	doc := &models.Document{ID: uuid.New(), Content: "# Title", Status: enums.DocumentStatusCompleted}
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodGet, "/", "", uuid.New(), map[string]string{"documentId": doc.ID.String()})
	GetDocument(stubDocumentService{doc: doc}, testLogger()).ServeHTTP(rec, req)

	var dto documents.DocumentDTO
	decodeData(t, rec, &dto)
	if dto.HTML != "" {
		t.Fatalf("html should be omitted without format=html")
	}
}

func TestGetDocumentRejectsUnknownFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodGet, "/?format=pdf", "", uuid.New(), map[string]string{"documentId": uuid.NewString()})
	GetDocument(stubDocumentService{}, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestListProjectDocumentsOmitsContent(t *testing.T) {
	rows := []models.Document{
		{ID: uuid.New(), Type: enums.DocumentTypePRD, Content: "long body", Status: enums.DocumentStatusCompleted},
		{ID: uuid.New(), Type: enums.DocumentTypeSchema, Status: enums.DocumentStatusPending},
	}
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodGet, "/", "", uuid.New(), map[string]string{"projectId": uuid.NewString()})
	ListProjectDocuments(stubDocumentService{docs: rows}, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "long body") {
		t.Fatalf("list response should not carry content")
	}
}

func TestDeleteDocumentNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodDelete, "/", "", uuid.New(), map[string]string{"documentId": uuid.NewString()})
	DeleteDocument(stubDocumentService{err: pkgerrors.New(pkgerrors.CodeNotFound, "document not found")}, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}
