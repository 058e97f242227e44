package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/plugup/shipment-tracking/pkg/common/models"
	"github.com/plugup/shipment-tracking/pkg/tracking"
)

var (
	errMissingField       = errors.New("missing required field")
	errInvalidMarketplace = errors.New("invalid marketplace")
	errInvalidTimestamp   = errors.New("invalid event_timestamp")
	errEmptyBatch         = errors.New("events must be a non-empty array")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// ValidateEvent checks the wire contract of one event and returns its
// timestamp in UTC at the microsecond precision Postgres keeps.
func ValidateEvent(ev models.TrackingEvent) (time.Time, error) {
	required := []struct {
		name, value string
	}{
		{"marketplace_order_id", ev.MarketplaceOrderID},
		{"marketplace", ev.Marketplace},
		{"company_id", ev.CompanyID},
		{"event_status", ev.EventStatus},
		{"event_timestamp", ev.EventTimestamp},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return time.Time{}, ValidationError{reason: fmt.Errorf("%s: %w", f.name, errMissingField)}
		}
	}

	m, ok := tracking.ParseMarketplace(ev.Marketplace)
	if !ok || m.Code() != ev.Marketplace {
		return time.Time{}, ValidationError{reason: fmt.Errorf("marketplace '%s' not one of meli, fala, walm, cenc: %w", ev.Marketplace, errInvalidMarketplace)}
	}

	ts, err := time.Parse(time.RFC3339Nano, ev.EventTimestamp)
	if err != nil {
		return time.Time{}, ValidationError{reason: fmt.Errorf("'%s' is not RFC3339: %w", ev.EventTimestamp, errInvalidTimestamp)}
	}
	return ts.UTC().Truncate(time.Microsecond), nil
}

func validateBatch(req models.BatchRequest) error {
	if len(req.Events) == 0 {
		return ValidationError{reason: errEmptyBatch}
	}
	return nil
}
