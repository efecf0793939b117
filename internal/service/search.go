package service

import (
	"context"

	apperrors "gatepass/internal/errors"
	"gatepass/internal/models"
)

type SearchService struct {
	searcher TicketSearcher
}

func NewSearchService(searcher TicketSearcher) *SearchService {
	return &SearchService{searcher: searcher}
}

// Tickets searches issued tickets. It fails with apperrors.ErrUnavailable when
// no index is configured.
func (s *SearchService) Tickets(ctx context.Context, query string, size int) (*models.TicketSearchResponse, error) {
	if s.searcher == nil {
		return nil, apperrors.ErrUnavailable
	}
	return s.searcher.Search(ctx, query, size)
}
