package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

// ErrInFlight is returned while another request holding the same key is
// still being processed
var ErrInFlight = fmt.Errorf("request with this idempotency key is in progress")

// StoredResponse is a replayable response body
type StoredResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Idempotency remembers the responses of mutating requests so a retried
// request replays the first outcome instead of running twice.
type Idempotency struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotency creates an idempotency store with the given retention
func NewIdempotency(client *redis.Client, ttl time.Duration) *Idempotency {
	return &Idempotency{client: client, ttl: ttl}
}

// Key scopes a client supplied key to the caller and route
func Key(userID, route, clientKey string) string {
	return fmt.Sprintf("idempotency:%s:%s:%s", userID, route, clientKey)
}

// Begin claims the key. It returns the stored response when the request
// already completed, or proceed=true when the caller should run it.
func (i *Idempotency) Begin(ctx context.Context, key string) (stored *StoredResponse, proceed bool, err error) {
	claimed, err := SetNX(ctx, i.client, key, pendingMarker, i.ttl)
	if err != nil {
		return nil, false, err
	}
	if claimed {
		return nil, true, nil
	}

	val, found, err := Get(ctx, i.client, key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		// expired between the two calls
		return i.Begin(ctx, key)
	}
	if val == pendingMarker {
		return nil, false, ErrInFlight
	}

	var resp StoredResponse
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return nil, false, fmt.Errorf("failed to decode stored response: %w", err)
	}
	return &resp, false, nil
}

// Finish records the response for replay
func (i *Idempotency) Finish(ctx context.Context, key string, status int, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := json.Marshal(StoredResponse{Status: status, Body: data})
	if err != nil {
		return err
	}
	return SetWithExpiry(ctx, i.client, key, resp, i.ttl)
}

// Abort releases the key so the request may be retried
func (i *Idempotency) Abort(ctx context.Context, key string) error {
	return Delete(ctx, i.client, key)
}
