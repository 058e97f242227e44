package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/plugup/shipment-tracking/pkg/common/logger"
	"github.com/plugup/shipment-tracking/pkg/common/models"
	"github.com/plugup/shipment-tracking/pkg/observability/metrics"
	"golang.org/x/sync/errgroup"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
	ActionError  Action = "error"
)

// Outcome is the gate's decision for one event.
type Outcome struct {
	Action             Action
	MarketplaceOrderID string
	EventID            string
	Reason             string
	Err                error
}

// Publisher announces stored events.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType, source, key string, data map[string]interface{}) error
}

type Gate struct {
	store   Store
	locker  Locker
	events  Publisher
	workers int
	now     func() time.Time
}

// NewGate wires the gate. events may be nil.
func NewGate(store Store, locker Locker, events Publisher, workers int) *Gate {
	if workers < 1 {
		workers = 1
	}
	return &Gate{store: store, locker: locker, events: events, workers: workers, now: time.Now}
}

func (g *Gate) Apply(ctx context.Context, ev models.TrackingEvent) Outcome {
	out := g.apply(ctx, ev)
	out.MarketplaceOrderID = ev.MarketplaceOrderID
	metrics.GateOutcomes.WithLabelValues(string(out.Action)).Inc()
	return out
}

func (g *Gate) apply(ctx context.Context, ev models.TrackingEvent) Outcome {
	ts, err := ValidateEvent(ev)
	if err != nil {
		return Outcome{Action: ActionError, Err: err}
	}

	order, err := g.store.FindOrder(ctx, ev.Marketplace, ev.MarketplaceOrderID)
	if errors.Is(err, ErrOrderNotFound) {
		return Outcome{Action: ActionSkip, Reason: fmt.Sprintf("no %s order %s registered yet", ev.Marketplace, ev.MarketplaceOrderID)}
	}
	if err != nil {
		return Outcome{Action: ActionError, Err: fmt.Errorf("resolving order: %w", err)}
	}
	if !strings.EqualFold(order.CompanyID, ev.CompanyID) {
		logger.Log.WithFields(map[string]interface{}{
			"marketplace":          ev.Marketplace,
			"marketplace_order_id": ev.MarketplaceOrderID,
			"event_company_id":     ev.CompanyID,
			"order_company_id":     order.CompanyID,
		}).Error("Tenant mismatch on tracking event")
		return Outcome{Action: ActionError, Err: ErrTenantMismatch}
	}

	release, err := g.locker.Acquire(ctx, order.ID)
	if err != nil {
		return Outcome{Action: ActionError, Err: fmt.Errorf("locking order %s: %w", order.ID, err)}
	}
	defer release()

	key := EventKey{OrderID: order.ID, EventStatus: ev.EventStatus, EventTimestamp: ts}
	fields := Mutable{
		EventLocation:  strings.TrimSpace(ev.EventLocation),
		CourierName:    strings.TrimSpace(ev.CourierName),
		TrackingNumber: strings.TrimSpace(ev.TrackingNumber),
		Notes:          strings.TrimSpace(ev.Notes),
	}
	now := g.now().UTC()

	out := g.upsert(ctx, key, fields, now)
	if out.Action == ActionCreate || out.Action == ActionUpdate {
		g.announce(ctx, order, ev, out)
	}
	return out
}

func (g *Gate) upsert(ctx context.Context, key EventKey, fields Mutable, now time.Time) Outcome {
	existing, err := g.store.FindEvent(ctx, key)
	switch {
	case err == nil:
		return g.update(ctx, existing.ID, fields, now)
	case !errors.Is(err, ErrEventNotFound):
		return Outcome{Action: ActionError, Err: fmt.Errorf("looking up event: %w", err)}
	}

	stored := &StoredEvent{
		ID:             uuid.New().String(),
		OrderID:        key.OrderID,
		EventStatus:    key.EventStatus,
		EventTimestamp: key.EventTimestamp,
		ReceivedAt:     now,
	}
	fields.apply(stored)

	err = g.store.CreateEvent(ctx, stored)
	if errors.Is(err, ErrDuplicateEvent) {
		// another replica inserted it first
		existing, err := g.store.FindEvent(ctx, key)
		if err != nil {
			return Outcome{Action: ActionError, Err: fmt.Errorf("looking up event: %w", err)}
		}
		return g.update(ctx, existing.ID, fields, now)
	}
	if err != nil {
		return Outcome{Action: ActionError, Err: fmt.Errorf("creating event: %w", err)}
	}
	return Outcome{Action: ActionCreate, EventID: stored.ID}
}

func (g *Gate) update(ctx context.Context, id string, fields Mutable, now time.Time) Outcome {
	if err := g.store.UpdateEvent(ctx, id, fields, now); err != nil {
		return Outcome{Action: ActionError, Err: fmt.Errorf("updating event %s: %w", id, err)}
	}
	return Outcome{Action: ActionUpdate, EventID: id}
}

func (g *Gate) announce(ctx context.Context, order *Order, ev models.TrackingEvent, out Outcome) {
	if g.events == nil {
		return
	}
	data := map[string]interface{}{
		"action":               string(out.Action),
		"event_id":             out.EventID,
		"order_id":             order.ID,
		"company_id":           order.CompanyID,
		"marketplace":          ev.Marketplace,
		"marketplace_order_id": ev.MarketplaceOrderID,
		"event_status":         ev.EventStatus,
		"event_timestamp":      ev.EventTimestamp,
	}
	if err := g.events.PublishEvent(ctx, models.EventTypeEventStored, "tracking-store", order.ID, data); err != nil {
		logger.Log.WithError(err).WithField("event_id", out.EventID).Warn("Failed to publish stored tracking event")
	}
}

// ApplyBatch runs Apply for every event with bounded concurrency. Outcomes
// keep input order.
func (g *Gate) ApplyBatch(ctx context.Context, events []models.TrackingEvent) []Outcome {
	outcomes := make([]Outcome, len(events))
	var group errgroup.Group
	group.SetLimit(g.workers)
	for i := range events {
		group.Go(func() error {
			outcomes[i] = g.Apply(ctx, events[i])
			return nil
		})
	}
	_ = group.Wait()
	return outcomes
}

// Summarize builds the batch response for a set of outcomes.
func Summarize(outcomes []Outcome) models.BatchResponse {
	resp := models.BatchResponse{
		Processed: len(outcomes),
		Details: models.BatchDetails{
			CreatedIDs:    []string{},
			UpdatedIDs:    []string{},
			SkippedOrders: []string{},
			ErrorMessages: []string{},
		},
	}
	for _, out := range outcomes {
		switch out.Action {
		case ActionCreate:
			resp.Created++
			resp.Details.CreatedIDs = append(resp.Details.CreatedIDs, out.EventID)
		case ActionUpdate:
			resp.Updated++
			resp.Details.UpdatedIDs = append(resp.Details.UpdatedIDs, out.EventID)
		case ActionSkip:
			resp.Skipped++
			resp.Details.SkippedOrders = append(resp.Details.SkippedOrders, fmt.Sprintf("%s: %s", out.MarketplaceOrderID, out.Reason))
		default:
			resp.Errors++
			resp.Details.ErrorMessages = append(resp.Details.ErrorMessages, fmt.Sprintf("%s: %v", out.MarketplaceOrderID, out.Err))
		}
	}

	switch {
	case resp.Errors == 0:
		resp.Status = models.BatchStatusSuccess
	case resp.Errors == resp.Processed:
		resp.Status = models.BatchStatusError
	default:
		resp.Status = models.BatchStatusPartialSuccess
	}
	return resp
}
