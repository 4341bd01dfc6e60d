package app

import (
	"context"
	"strings"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	"github.com/dwikikusuma/marketplace-checkout/internal/catalog/domain"
)

type Service struct {
	repo ProductRepo
}

func NewService(repo ProductRepo) *Service {
	return &Service{
		repo: repo,
	}
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Product{}, apperr.Invalid("product id is required")
	}
	return s.repo.Get(ctx, strings.TrimSpace(id))
}
