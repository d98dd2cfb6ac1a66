package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/portfolio_tracker/config"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/jackc/pgx/v5"
)

const listenerReconnectDelay = 5 * time.Second

// PostgresListener turns LISTEN/NOTIFY payloads from the change triggers into model.ChangeEvent values.
type PostgresListener struct {
	dsn     string
	channel string
	events  chan model.ChangeEvent
}

func NewPostgresListener(cfg *config.Config) *PostgresListener {
	return &PostgresListener{
		dsn:     PostgresDSN(cfg),
		channel: cfg.Postgres.NotifyChannel,
		events:  make(chan model.ChangeEvent, 64),
	}
}

func (l *PostgresListener) Events() <-chan model.ChangeEvent {
	return l.events
}

// Run blocks until ctx is cancelled, reconnecting after connection failures.
func (l *PostgresListener) Run(ctx context.Context) {
	defer close(l.events)

	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			slog.Info("postgres listener stopped")
			return
		}

		slog.Error("postgres listener failed, reconnecting", slog.String("err", err.Error()))

		select {
		case <-ctx.Done():
			return
		case <-time.After(listenerReconnectDelay):
		}
	}
}

func (l *PostgresListener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("pgx.Connect: %w", err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	if _, err = conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}

	slog.Info("postgres listener started", slog.String("channel", l.channel))

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}

		event, err := parseNotification(notification.Payload)
		if err != nil {
			slog.Warn("skip malformed notification", slog.String("payload", notification.Payload), slog.String("err", err.Error()))
			continue
		}

		select {
		case l.events <- event:
		default:
			slog.Warn("change events channel is full, event dropped", slog.String("portfolioID", event.PortfolioID))
		}
	}
}

func parseNotification(payload string) (model.ChangeEvent, error) {
	var event model.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return model.ChangeEvent{}, err
	}
	if event.PortfolioID == "" {
		return model.ChangeEvent{}, errors.New("empty portfolio_id")
	}
	return event, nil
}
