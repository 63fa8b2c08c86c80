// Package service implements the quota ledger: recruitment letter
// registration, transactional availability checks, and idempotent usage
// recomputation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"workpermit/internal/audit"
	"workpermit/internal/platform/metrics"
	"workpermit/internal/quota/models"
	"workpermit/internal/ports"
	id "workpermit/pkg/domain"
	dErrors "workpermit/pkg/domain-errors"
	"workpermit/pkg/platform/sentinel"
	"workpermit/pkg/requestcontext"
)

// SummaryCache is the read cache for usage summaries. Optional; the ledger
// never consults it for availability decisions.
type SummaryCache interface {
	Get(ctx context.Context, letterID id.LetterID) (*models.UsageSummary, error)
	Set(ctx context.Context, summary *models.UsageSummary) error
	Invalidate(ctx context.Context, letterID id.LetterID) error
}

// Service is the quota ledger. All availability answers come from counting
// deployment rows under a letter row lock; the used_quota column is a
// display cache written only by RecalculateUsage.
type Service struct {
	letters        ports.LetterStore
	cache          SummaryCache
	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithCache(cache SummaryCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// New constructs the quota ledger service.
func New(letters ports.LetterStore, opts ...Option) *Service {
	s := &Service{
		letters: letters,
		tracer:  otel.Tracer("workpermit/quota"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateLetterParams are the inputs for registering a recruitment letter.
type CreateLetterParams struct {
	EmployerID    id.EmployerID
	LetterNumber  string
	ApprovedQuota int
	MaleQuota     int
	FemaleQuota   int
	CanCirculate  bool
}

// CreateLetter registers a new recruitment letter with zero usage.
func (s *Service) CreateLetter(ctx context.Context, params CreateLetterParams) (*models.RecruitmentLetter, error) {
	params.LetterNumber = strings.TrimSpace(params.LetterNumber)

	letter, err := models.NewRecruitmentLetter(
		id.LetterID(uuid.New()),
		params.EmployerID,
		params.LetterNumber,
		params.ApprovedQuota,
		params.MaleQuota,
		params.FemaleQuota,
		params.CanCirculate,
		requestcontext.Now(ctx),
	)
	if err != nil {
		return nil, err
	}

	if err := s.letters.Create(ctx, letter); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "letter number must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create recruitment letter")
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.ActionLetterCreated, "recruitment_letter", letter.ID.String(),
		"letter_number", letter.LetterNumber,
		"approved_quota", letter.ApprovedQuota,
		"can_circulate", letter.CanCirculate)
	return letter, nil
}

// GetLetter returns a letter by ID.
func (s *Service) GetLetter(ctx context.Context, letterID id.LetterID) (*models.RecruitmentLetter, error) {
	letter, err := s.letters.FindByID(ctx, letterID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "recruitment letter not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load recruitment letter")
	}
	return letter, nil
}

// CheckAvailability decides whether one more worker of the given gender fits
// under the letter. It must run inside the caller's placement transaction:
// it takes the letter row lock so concurrent checks on the same letter
// serialize, then counts live rows rather than trusting used_quota.
//
// A configured sub-quota carves out reserved capacity for its gender: such a
// worker is admitted or rejected by the gender-restricted count alone, so a
// reserved slot stays claimable even after unrestricted workers have filled
// the overall quota. Workers of an unrestricted gender are gated by the
// overall quota.
func (s *Service) CheckAvailability(ctx context.Context, letterID id.LetterID, gender id.Gender) error {
	ctx, span := s.tracer.Start(ctx, "quota.check_availability")
	defer span.End()

	if err := s.letters.LockForUpdate(ctx, letterID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "recruitment letter not found")
		}
		if dErrors.HasCode(err, dErrors.CodePrecondition) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock recruitment letter")
	}

	letter, err := s.letters.FindByID(ctx, letterID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load recruitment letter")
	}

	if subQuota := letter.SubQuotaFor(gender); subQuota > 0 {
		genderUsed, err := s.letters.CountInUse(ctx, letterID, letter.CanCirculate, &gender)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count letter usage by gender")
		}
		if genderUsed >= subQuota {
			s.incrementQuotaRejection("gender")
			return dErrors.Newf(dErrors.CodeQuotaExceeded, "%s quota for letter exhausted", gender).WithDetails(map[string]any{
				"letter_number": letter.LetterNumber,
				"gender":        gender.String(),
				"sub_quota":     subQuota,
				"used":          genderUsed,
			})
		}
		return nil
	}

	used, err := s.letters.CountInUse(ctx, letterID, letter.CanCirculate, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count letter usage")
	}
	if used >= letter.ApprovedQuota {
		s.incrementQuotaRejection("overall")
		return dErrors.New(dErrors.CodeQuotaExceeded, "recruitment letter quota exhausted").WithDetails(map[string]any{
			"letter_number":  letter.LetterNumber,
			"approved_quota": letter.ApprovedQuota,
			"used":           used,
			"circular":       letter.CanCirculate,
		})
	}
	return nil
}

// RecalculateUsage recomputes the letter's used_quota from deployment rows
// and overwrites the cache column. It never increments; running it twice in
// a row is a no-op. Callers invoke it inside the transaction that changed
// the rows being counted.
func (s *Service) RecalculateUsage(ctx context.Context, letterID id.LetterID) (int, error) {
	ctx, span := s.tracer.Start(ctx, "quota.recalculate_usage")
	defer span.End()

	letter, err := s.letters.FindByID(ctx, letterID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.New(dErrors.CodeNotFound, "recruitment letter not found")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load recruitment letter")
	}

	used, err := s.letters.CountInUse(ctx, letterID, letter.CanCirculate, nil)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count letter usage")
	}
	if err := s.letters.UpdateUsedQuota(ctx, letterID, used); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store recomputed usage")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, letterID); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to invalidate summary cache", "letter_id", letterID, "error", err)
		}
	}
	return used, nil
}

// GetSummary returns the operator-facing usage view. Reads go through the
// cache when one is configured; counts are recomputed on a miss.
func (s *Service) GetSummary(ctx context.Context, letterID id.LetterID) (*models.UsageSummary, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, letterID)
		if err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "summary cache read failed", "letter_id", letterID, "error", err)
		}
		if cached != nil {
			return cached, nil
		}
	}

	letter, err := s.GetLetter(ctx, letterID)
	if err != nil {
		return nil, err
	}

	used, err := s.letters.CountInUse(ctx, letterID, letter.CanCirculate, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count letter usage")
	}
	male := id.GenderMale
	maleUsed, err := s.letters.CountInUse(ctx, letterID, letter.CanCirculate, &male)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count letter usage by gender")
	}
	female := id.GenderFemale
	femaleUsed, err := s.letters.CountInUse(ctx, letterID, letter.CanCirculate, &female)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count letter usage by gender")
	}

	summary := &models.UsageSummary{
		LetterID:      letter.ID,
		LetterNumber:  letter.LetterNumber,
		ApprovedQuota: letter.ApprovedQuota,
		UsedQuota:     used,
		Available:     letter.ApprovedQuota - used,
		MaleQuota:     letter.MaleQuota,
		MaleUsed:      maleUsed,
		FemaleQuota:   letter.FemaleQuota,
		FemaleUsed:    femaleUsed,
		CanCirculate:  letter.CanCirculate,
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, summary); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "summary cache write failed", "letter_id", letterID, "error", err)
		}
	}
	return summary, nil
}

func (s *Service) incrementQuotaRejection(kind string) {
	if s.metrics != nil {
		s.metrics.QuotaRejections.WithLabelValues(kind).Inc()
	}
}
