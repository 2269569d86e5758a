package lifecycle

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/RepairBox/internal/broker/messages"
	"github.com/BearBump/RepairBox/internal/metrics"
	"github.com/BearBump/RepairBox/internal/models"
)

const publishTimeout = 5 * time.Second

// emit публикует событие после коммита. Ошибки только логируются:
// переход уже записан и откатываться не должен.
func (s *Service) emit(ctx context.Context, detail *models.RepairDetail, prev models.Status, repair *models.Repair, entry *models.LedgerEntry, correction bool) {
	if s.pub == nil || s.topic == "" {
		return
	}

	msg := messages.StatusChanged{
		RepairID:       repair.ID,
		TrackingCode:   repair.TrackingCode,
		PreviousStatus: string(prev),
		NewStatus:      string(repair.Status),
		OccurredAt:     entry.OccurredAt,
		Correction:     correction,
	}
	if detail.Customer != nil {
		msg.CustomerContact = messages.CustomerContact{
			Name:  detail.Customer.Name,
			Phone: detail.Customer.Phone,
			Email: detail.Customer.Email,
		}
	}
	if detail.Vehicle != nil {
		msg.VehiclePlate = detail.Vehicle.Plate
	}

	b, err := json.Marshal(msg)
	if err != nil {
		metrics.EventsPublishFailed.Inc()
		slog.Error("marshal status changed", "repair_id", repair.ID, "err", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.pub.Publish(pubCtx, s.topic, []byte(repair.ID), b); err != nil {
		metrics.EventsPublishFailed.Inc()
		slog.Warn("publish status changed failed", "repair_id", repair.ID, "topic", s.topic, "err", err)
	}
}
