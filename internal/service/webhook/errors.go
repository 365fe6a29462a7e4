package webhook

import "errors"

// Sentinel errors for the webhook delivery engine.
var (
	// ErrNoEndpoint means the site has no webhook URL configured. Firing an
	// event for such a site is a no-op, not a failure.
	ErrNoEndpoint = errors.New("no webhook endpoint configured for site")

	// ErrEventNotFound is returned when an event id does not exist.
	ErrEventNotFound = errors.New("webhook event not found")

	// ErrNotClaimable means a delivery attempt could not claim the event:
	// it is already terminal or another attempt is in flight.
	ErrNotClaimable = errors.New("webhook event is terminal or already being attempted")
)
