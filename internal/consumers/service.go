package consumers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/stan.go"

	"gatepass/internal/config"
	"gatepass/internal/database"
	"gatepass/internal/messaging"
	"gatepass/internal/models"
	"gatepass/internal/notify"
	"gatepass/internal/repository"
	"gatepass/internal/search"
	"gatepass/internal/service"
)

const queueGroup = "consumers"

type ConsumerService struct {
	db       *database.DB
	nats     *messaging.NATSClient
	repos    *repository.Repositories
	services *service.Services
	handlers *Handlers
	subs     []stan.Subscription
}

func NewConsumerService(ctx context.Context, cfg *config.Config) (*ConsumerService, error) {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	repos := repository.NewRepositories(db)

	var notifier service.Notifier
	if cfg.MailEnabled() {
		notifier = notify.NewMailer(notify.NewSMTPSender(cfg.Mail))
	}

	var index TicketIndexer
	if cfg.Search.Enabled {
		idx, err := search.NewTicketIndex(cfg.Search)
		if err != nil {
			slog.Warn("Elasticsearch unavailable, tickets will not be indexed", "error", err)
		} else {
			index = idx
		}
	}

	services := service.NewServices(service.Deps{
		Tickets:   repos.Tickets,
		Prices:    repos.Prices,
		Publisher: natsClient,
		Options: service.Options{
			Currency:        cfg.Currency,
			FrontendBaseURL: cfg.FrontendBaseURL,
		},
	})

	return &ConsumerService{
		db:       db,
		nats:     natsClient,
		repos:    repos,
		services: services,
		handlers: NewHandlers(repos.Tickets, notifier, index),
	}, nil
}

// Completions exposes the completion service to background jobs.
func (cs *ConsumerService) Completions() *service.CompletionService {
	return cs.services.Completions
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	subscriptions := []struct {
		subject string
		handler stan.MsgHandler
	}{
		{models.EventTicketIssued, cs.handlers.HandleTicketIssued},
		{models.EventTicketRedeemed, cs.handlers.HandleTicketRedeemed},
		{models.EventPurchaseFailed, cs.handlers.HandlePurchaseFailed},
	}

	for _, s := range subscriptions {
		sub, err := cs.nats.SubscribeQueue(s.subject, queueGroup, s.handler)
		if err != nil {
			return err
		}
		cs.subs = append(cs.subs, sub)
	}

	slog.Info("All consumers started successfully")
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	// Close keeps the durable subscriptions registered for the next start.
	for _, sub := range cs.subs {
		if err := sub.Close(); err != nil {
			slog.Error("Error closing subscription", "error", err)
		}
	}

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
