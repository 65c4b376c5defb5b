package nats

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/EricGoldwein/run320-sub001/internal/model"
	"github.com/EricGoldwein/run320-sub001/internal/service"
)

const (
	TopicAwardCommands = "wingo.commands.award"
	TopicSpendCommands = "wingo.commands.spend"

	// All ledger instances share one queue group so each command is handled
	// exactly once.
	queueGroup = "wingo_ledger"
)

// Handler is the fire-and-forget intake for activity-mining scripts: they
// publish award/spend commands instead of calling the HTTP API and do not
// wait for a result. Rejections are logged, not returned.
type Handler struct {
	svc  service.Ledger
	nc   *nats.Conn
	subs []*nats.Subscription
}

func NewHandler(svc service.Ledger, nc *nats.Conn) *Handler {
	return &Handler{svc: svc, nc: nc}
}

// Start subscribes to the command topics and blocks until ctx is cancelled,
// then drains the subscriptions so in-flight commands finish.
func (h *Handler) Start(ctx context.Context) error {
	awardSub, err := h.nc.QueueSubscribe(TopicAwardCommands, queueGroup, func(m *nats.Msg) {
		var req model.AwardRequest
		if err := json.Unmarshal(m.Data, &req); err != nil {
			slog.Error("nats: failed to unmarshal award command", "error", err)
			return
		}
		if _, err := h.svc.Award(ctx, req); err != nil {
			slog.Error("nats: award rejected", "user_id", req.UserID, "amount", req.Amount, "error", err)
		}
	})
	if err != nil {
		return err
	}
	h.subs = append(h.subs, awardSub)

	spendSub, err := h.nc.QueueSubscribe(TopicSpendCommands, queueGroup, func(m *nats.Msg) {
		var req model.SpendRequest
		if err := json.Unmarshal(m.Data, &req); err != nil {
			slog.Error("nats: failed to unmarshal spend command", "error", err)
			return
		}
		if _, err := h.svc.Spend(ctx, req); err != nil {
			slog.Error("nats: spend rejected", "user_id", req.UserID, "amount", req.Amount, "error", err)
		}
	})
	if err != nil {
		return err
	}
	h.subs = append(h.subs, spendSub)

	slog.Info("NATS command handler is running")

	<-ctx.Done()
	slog.Info("NATS command handler shutting down, draining subscriptions...")

	for _, s := range h.subs {
		_ = s.Drain()
	}
	return nil
}

func (h *Handler) Stop(ctx context.Context) error {
	for _, s := range h.subs {
		_ = s.Unsubscribe()
	}
	return nil
}
