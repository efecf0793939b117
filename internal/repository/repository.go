package repository

import (
	"gatepass/internal/database"
)

type Repositories struct {
	Tickets *TicketRepository
	Prices  *PriceRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Tickets: NewTicketRepository(db),
		Prices:  NewPriceRepository(db),
	}
}
