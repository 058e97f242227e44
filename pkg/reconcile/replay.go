package reconcile

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/plugup/shipment-tracking/pkg/common/logger"
	"github.com/plugup/shipment-tracking/pkg/common/models"
)

// Replayer feeds dead-lettered batches back through the gate.
type Replayer struct {
	gate *Gate
}

func NewReplayer(gate *Gate) *Replayer {
	return &Replayer{gate: gate}
}

// Handle returns an error only when some event failed for a reason that a
// later attempt could fix, leaving the message uncommitted.
func (r *Replayer) Handle(ctx context.Context, event models.Event) error {
	if event.Type != models.EventTypeBatchFailed {
		return nil
	}

	events, err := decodeBatch(event.Data)
	if err != nil {
		logger.Log.WithError(err).WithField("event_id", event.ID).Error("Dropping undecodable dead-lettered batch")
		return nil
	}
	if len(events) == 0 {
		return nil
	}

	outcomes := r.gate.ApplyBatch(ctx, events)
	resp := Summarize(outcomes)
	logger.Log.WithFields(map[string]interface{}{
		"event_id": event.ID,
		"status":   resp.Status,
		"created":  resp.Created,
		"updated":  resp.Updated,
		"skipped":  resp.Skipped,
		"errors":   resp.Errors,
	}).Info("Dead-lettered batch replayed")

	for _, out := range outcomes {
		if out.Action == ActionError && transient(out.Err) {
			return out.Err
		}
	}
	return nil
}

func decodeBatch(data map[string]interface{}) ([]models.TrackingEvent, error) {
	raw, err := json.Marshal(data["events"])
	if err != nil {
		return nil, err
	}
	var events []models.TrackingEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func transient(err error) bool {
	return err != nil && !IsValidationError(err) && !errors.Is(err, ErrTenantMismatch)
}
