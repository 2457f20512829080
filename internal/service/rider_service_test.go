package service

import (
	"context"
	"testing"

	apperrors "github.com/quickhop/quickhop/internal/errors"
	"github.com/quickhop/quickhop/internal/models"
)

type riderFixture struct {
	store   *memStore
	cache   *fakeRiderCache
	service RiderService
}

func newRiderFixture(t *testing.T) *riderFixture {
	t.Helper()
	store := newMemStore()
	cache := newFakeRiderCache()
	svc := NewRiderService(
		&fakeProfileRepo{s: store},
		&fakeDeliveryRepo{s: store},
		&fakeDropOffRepo{s: store},
		cache,
	)
	return &riderFixture{store: store, cache: cache, service: svc}
}

func TestGetAvailability(t *testing.T) {
	f := newRiderFixture(t)
	ctx := context.Background()

	available := f.store.addRider(true)
	busy := f.store.addRider(false)
	businessID := f.store.addBusiness()

	if got, err := f.service.GetAvailability(ctx, available); err != nil || !got {
		t.Errorf("GetAvailability(available) = %v, %v, want true, nil", got, err)
	}
	if got, err := f.service.GetAvailability(ctx, busy); err != nil || got {
		t.Errorf("GetAvailability(busy) = %v, %v, want false, nil", got, err)
	}

	_, err := f.service.GetAvailability(ctx, businessID)
	apiErr, ok := err.(*apperrors.APIError)
	if !ok || apiErr.StatusCode != 400 {
		t.Errorf("GetAvailability(business) error = %v, want 400", err)
	}
}

func TestSetAvailabilityBlockedByActiveDelivery(t *testing.T) {
	f := newRiderFixture(t)
	ctx := context.Background()
	riderID := f.store.addRider(false)
	deliveryID := f.store.addDelivery(1)

	f.store.mu.Lock()
	f.store.deliveries[deliveryID].Status = models.DeliveryStatusPickedUp
	f.store.deliveries[deliveryID].RiderID = &riderID
	f.store.mu.Unlock()

	err := f.service.SetAvailability(ctx, riderID, true)
	apiErr, ok := err.(*apperrors.APIError)
	if !ok || apiErr.StatusCode != 409 {
		t.Errorf("SetAvailability(true) with active delivery error = %v, want 409", err)
	}

	// Going unavailable is always allowed.
	if err := f.service.SetAvailability(ctx, riderID, false); err != nil {
		t.Errorf("SetAvailability(false) error = %v", err)
	}

	// Once the delivery completes, the rider can come back.
	f.store.mu.Lock()
	f.store.deliveries[deliveryID].Status = models.DeliveryStatusDelivered
	f.store.mu.Unlock()

	if err := f.service.SetAvailability(ctx, riderID, true); err != nil {
		t.Errorf("SetAvailability(true) after completion error = %v", err)
	}
}

func TestActiveDeliveryFromCache(t *testing.T) {
	f := newRiderFixture(t)
	ctx := context.Background()
	riderID := f.store.addRider(false)
	deliveryID := f.store.addDelivery(2)

	f.store.mu.Lock()
	f.store.deliveries[deliveryID].Status = models.DeliveryStatusPickedUp
	f.store.deliveries[deliveryID].RiderID = &riderID
	f.store.mu.Unlock()
	f.cache.SetActiveDelivery(ctx, riderID, deliveryID)

	got, err := f.service.ActiveDelivery(ctx, riderID)
	if err != nil {
		t.Fatalf("ActiveDelivery() error = %v", err)
	}
	if got.ID != deliveryID {
		t.Errorf("ActiveDelivery() id = %q, want %q", got.ID, deliveryID)
	}
	if len(got.DropOffs) != 2 {
		t.Errorf("ActiveDelivery() drop-offs = %d, want 2", len(got.DropOffs))
	}
}

func TestActiveDeliveryStaleCacheFallsBack(t *testing.T) {
	f := newRiderFixture(t)
	ctx := context.Background()
	riderID := f.store.addRider(false)

	// Cached delivery is finished; the real assignment lives elsewhere.
	staleID := f.store.addDelivery(1)
	currentID := f.store.addDelivery(1)
	f.store.mu.Lock()
	f.store.deliveries[staleID].Status = models.DeliveryStatusDelivered
	f.store.deliveries[staleID].RiderID = &riderID
	f.store.deliveries[currentID].Status = models.DeliveryStatusInTransit
	f.store.deliveries[currentID].RiderID = &riderID
	f.store.mu.Unlock()
	f.cache.SetActiveDelivery(ctx, riderID, staleID)

	got, err := f.service.ActiveDelivery(ctx, riderID)
	if err != nil {
		t.Fatalf("ActiveDelivery() error = %v", err)
	}
	if got.ID != currentID {
		t.Errorf("ActiveDelivery() id = %q, want current %q", got.ID, currentID)
	}
}

func TestActiveDeliveryNone(t *testing.T) {
	f := newRiderFixture(t)
	riderID := f.store.addRider(true)

	_, err := f.service.ActiveDelivery(context.Background(), riderID)
	apiErr, ok := err.(*apperrors.APIError)
	if !ok || apiErr.StatusCode != 404 {
		t.Errorf("ActiveDelivery() error = %v, want 404", err)
	}
}
