package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"workpermit/internal/quota/models"
	"workpermit/internal/quota/service"
	id "workpermit/pkg/domain"
	dErrors "workpermit/pkg/domain-errors"
)

type stubService struct {
	createLetter func(ctx context.Context, params service.CreateLetterParams) (*models.RecruitmentLetter, error)
	getLetter    func(ctx context.Context, letterID id.LetterID) (*models.RecruitmentLetter, error)
	getSummary   func(ctx context.Context, letterID id.LetterID) (*models.UsageSummary, error)
}

func (s *stubService) CreateLetter(ctx context.Context, params service.CreateLetterParams) (*models.RecruitmentLetter, error) {
	return s.createLetter(ctx, params)
}

func (s *stubService) GetLetter(ctx context.Context, letterID id.LetterID) (*models.RecruitmentLetter, error) {
	return s.getLetter(ctx, letterID)
}

func (s *stubService) GetSummary(ctx context.Context, letterID id.LetterID) (*models.UsageSummary, error) {
	return s.getSummary(ctx, letterID)
}

type HandlerSuite struct {
	suite.Suite
	stub   *stubService
	router chi.Router
}

func (s *HandlerSuite) SetupTest() {
	s.stub = &stubService{}
	s.router = chi.NewRouter()
	New(s.stub, slog.New(slog.DiscardHandler)).Register(s.router)
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) serve(method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestCreateLetter() {
	employerID := uuid.NewString()

	s.Run("created", func() {
		s.stub.createLetter = func(_ context.Context, params service.CreateLetterParams) (*models.RecruitmentLetter, error) {
			s.Equal("RL-2025-014", params.LetterNumber)
			s.Equal(employerID, params.EmployerID.String())
			return &models.RecruitmentLetter{
				ID:            id.LetterID(uuid.New()),
				EmployerID:    params.EmployerID,
				LetterNumber:  params.LetterNumber,
				ApprovedQuota: params.ApprovedQuota,
				CanCirculate:  params.CanCirculate,
			}, nil
		}

		rec := s.serve(http.MethodPost, "/letters", map[string]any{
			"employer_id":    employerID,
			"letter_number":  "RL-2025-014",
			"approved_quota": 8,
			"can_circulate":  true,
		})
		s.Equal(http.StatusCreated, rec.Code)

		var letter models.RecruitmentLetter
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &letter))
		s.Equal("RL-2025-014", letter.LetterNumber)
		s.Equal(8, letter.ApprovedQuota)
	})

	s.Run("missing letter number", func() {
		rec := s.serve(http.MethodPost, "/letters", map[string]any{
			"employer_id": employerID,
		})
		s.Equal(http.StatusBadRequest, rec.Code)

		var resp struct {
			Error string `json:"error"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal(string(dErrors.CodeValidation), resp.Error)
	})

	s.Run("malformed body", func() {
		req := httptest.NewRequest(http.MethodPost, "/letters", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("duplicate letter number", func() {
		s.stub.createLetter = func(context.Context, service.CreateLetterParams) (*models.RecruitmentLetter, error) {
			return nil, dErrors.New(dErrors.CodeConflict, "letter number must be unique")
		}
		rec := s.serve(http.MethodPost, "/letters", map[string]any{
			"employer_id":    employerID,
			"letter_number":  "RL-2025-014",
			"approved_quota": 8,
		})
		s.Equal(http.StatusConflict, rec.Code)
	})
}

func (s *HandlerSuite) TestGetLetter() {
	letterID := id.LetterID(uuid.New())

	s.Run("found", func() {
		s.stub.getLetter = func(_ context.Context, got id.LetterID) (*models.RecruitmentLetter, error) {
			s.Equal(letterID, got)
			return &models.RecruitmentLetter{ID: got, LetterNumber: "RL-2025-014"}, nil
		}
		rec := s.serve(http.MethodGet, "/letters/"+letterID.String(), nil)
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("not found", func() {
		s.stub.getLetter = func(context.Context, id.LetterID) (*models.RecruitmentLetter, error) {
			return nil, dErrors.New(dErrors.CodeNotFound, "recruitment letter not found")
		}
		rec := s.serve(http.MethodGet, "/letters/"+letterID.String(), nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("invalid id", func() {
		rec := s.serve(http.MethodGet, "/letters/not-a-uuid", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestGetSummary() {
	letterID := id.LetterID(uuid.New())
	s.stub.getSummary = func(_ context.Context, got id.LetterID) (*models.UsageSummary, error) {
		return &models.UsageSummary{
			LetterID:      got,
			LetterNumber:  "RL-2025-014",
			ApprovedQuota: 8,
			UsedQuota:     3,
			Available:     5,
		}, nil
	}

	rec := s.serve(http.MethodGet, fmt.Sprintf("/letters/%s/summary", letterID), nil)
	s.Equal(http.StatusOK, rec.Code)

	var summary models.UsageSummary
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &summary))
	s.Equal(5, summary.Available)
}
