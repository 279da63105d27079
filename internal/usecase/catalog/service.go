// Package catalog is the write side of the benefit and offer catalog.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lgoty/benefitsearch/internal/domain"
	"github.com/lgoty/benefitsearch/internal/domain/beneficiary"
	domcat "github.com/lgoty/benefitsearch/internal/domain/catalog"
)

// Service persists catalog records and fires mutation hooks.
type Service struct {
	repo   Repository
	vocab  *beneficiary.Vocabulary
	hooks  []Hook
	logger *zap.Logger
}

// New creates a catalog service. Hooks run in order after every write.
func New(repo Repository, vocab *beneficiary.Vocabulary, logger *zap.Logger, hooks ...Hook) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, vocab: vocab, hooks: hooks, logger: logger}
}

// SaveBenefit validates and stores a benefit, then notifies hooks.
func (s *Service) SaveBenefit(ctx context.Context, b *domcat.Benefit) (*domcat.Benefit, error) {
	if b.Type == "" {
		b.Type = domcat.BenefitFederal
	}
	if err := validate(b.Title, b.Status, b.Type.IsValid()); err != nil {
		return nil, fmt.Errorf("validate benefit: %w", err)
	}
	b.TargetGroups = s.vocab.Normalize(b.TargetGroups)

	saved, err := s.repo.SaveBenefit(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("save benefit: %w", err)
	}
	s.saved(ctx, saved)
	return saved, nil
}

// SaveOffer validates and stores an offer, then notifies hooks.
func (s *Service) SaveOffer(ctx context.Context, o *domcat.Offer) (*domcat.Offer, error) {
	if o.Status == domcat.StatusRequiresVerification {
		return nil, fmt.Errorf("validate offer: %w: status %q", domain.ErrInvalidRequest, o.Status)
	}
	if err := validate(o.Title, o.Status, true); err != nil {
		return nil, fmt.Errorf("validate offer: %w", err)
	}
	o.TargetGroups = s.vocab.Normalize(o.TargetGroups)

	saved, err := s.repo.SaveOffer(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("save offer: %w", err)
	}
	s.saved(ctx, saved)
	return saved, nil
}

// DeleteBenefit soft-deletes a benefit, then notifies hooks.
func (s *Service) DeleteBenefit(ctx context.Context, id int64) error {
	if err := s.repo.DeleteBenefit(ctx, id); err != nil {
		return fmt.Errorf("delete benefit: %w", err)
	}
	s.deleted(ctx, domcat.BenefitRef(id))
	return nil
}

// DeleteOffer soft-deletes an offer, then notifies hooks.
func (s *Service) DeleteOffer(ctx context.Context, id int64) error {
	if err := s.repo.DeleteOffer(ctx, id); err != nil {
		return fmt.Errorf("delete offer: %w", err)
	}
	s.deleted(ctx, domcat.OfferRef(id))
	return nil
}

// Resync fires the save hooks for every non-deleted record and returns how many were replayed.
func (s *Service) Resync(ctx context.Context) (int, error) {
	benefits, err := s.repo.ListBenefits(ctx)
	if err != nil {
		return 0, fmt.Errorf("list benefits: %w", err)
	}
	offers, err := s.repo.ListOffers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list offers: %w", err)
	}

	for _, b := range benefits {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("resync: %w", err)
		}
		s.saved(ctx, b)
	}
	for _, o := range offers {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("resync: %w", err)
		}
		s.saved(ctx, o)
	}

	n := len(benefits) + len(offers)
	s.logger.Info("Catalog resynced", zap.Int("benefits", len(benefits)), zap.Int("offers", len(offers)))
	return n, nil
}

func (s *Service) saved(ctx context.Context, rec domcat.Record) {
	for _, h := range s.hooks {
		h.OnSaved(ctx, rec)
	}
}

func (s *Service) deleted(ctx context.Context, ref domcat.Ref) {
	for _, h := range s.hooks {
		h.OnDeleted(ctx, ref)
	}
}

func validate(title string, status domcat.Status, typeOK bool) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidRequest)
	}
	if !status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, status)
	}
	if !typeOK {
		return fmt.Errorf("%w: unknown benefit type", domain.ErrInvalidRequest)
	}
	return nil
}
