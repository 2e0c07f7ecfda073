package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/draftforge-backend/internal/assist"
	"github.com/angelmondragon/draftforge-backend/internal/projects"
	pkgerrors "github.com/angelmondragon/draftforge-backend/pkg/errors"
)

type stubAssistService struct {
	project  *projects.ProjectDTO
	answer   *assist.AnswerDTO
	err      error
	question string
}

func (s *stubAssistService) RefineIdea(context.Context, uuid.UUID, uuid.UUID) (*projects.ProjectDTO, error) {
	return s.project, s.err
}

func (s *stubAssistService) GeneratePlan(context.Context, uuid.UUID, uuid.UUID) (*projects.ProjectDTO, error) {
	return s.project, s.err
}

func (s *stubAssistService) Answer(_ context.Context, _, _ uuid.UUID, question string) (*assist.AnswerDTO, error) {
	s.question = question
	return s.answer, s.err
}

func TestRefineIdeaSuccess(t *testing.T) {
	projectID := uuid.New()
	svc := &stubAssistService{project: &projects.ProjectDTO{ID: projectID, Idea: "sharper idea"}}

	rec := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/", "", uuid.New(), map[string]string{"projectId": projectID.String()})
	RefineIdea(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var dto projects.ProjectDTO
	decodeData(t, rec, &dto)
	if dto.Idea != "sharper idea" {
		t.Fatalf("unexpected idea %q", dto.Idea)
	}
}

func TestGeneratePlanInsufficientCredits(t *testing.T) {
	svc := &stubAssistService{err: pkgerrors.New(pkgerrors.CodeInsufficientCredits, "insufficient credits")}

	rec := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/", "", uuid.New(), map[string]string{"projectId": uuid.NewString()})
	GeneratePlan(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d", rec.Code)
	}
}

func TestAnswerQuestionForwardsQuestion(t *testing.T) {
	projectID := uuid.New()
	svc := &stubAssistService{answer: &assist.AnswerDTO{ProjectID: projectID, Question: "which db?", Answer: "postgres", Credits: 10}}

	rec := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/", `{"question":"which db?"}`, uuid.New(), map[string]string{"projectId": projectID.String()})
	AnswerQuestion(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.question != "which db?" {
		t.Fatalf("question not forwarded: %q", svc.question)
	}
}

func TestAnswerQuestionRequiresQuestion(t *testing.T) {
	svc := &stubAssistService{}
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/", `{}`, uuid.New(), map[string]string{"projectId": uuid.NewString()})
	AnswerQuestion(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
