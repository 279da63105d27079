package catalog

import (
	"context"

	domcat "github.com/lgoty/benefitsearch/internal/domain/catalog"
)

// Repository defines the storage contract for catalog records.
type Repository interface {
	SaveBenefit(ctx context.Context, b *domcat.Benefit) (*domcat.Benefit, error)
	DeleteBenefit(ctx context.Context, id int64) error
	ListBenefits(ctx context.Context) ([]*domcat.Benefit, error)

	SaveOffer(ctx context.Context, o *domcat.Offer) (*domcat.Offer, error)
	DeleteOffer(ctx context.Context, id int64) error
	ListOffers(ctx context.Context) ([]*domcat.Offer, error)
}

// Hook is notified synchronously after a successful catalog write.
type Hook interface {
	OnSaved(ctx context.Context, rec domcat.Record)
	OnDeleted(ctx context.Context, ref domcat.Ref)
}
