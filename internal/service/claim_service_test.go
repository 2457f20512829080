package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	apperrors "github.com/quickhop/quickhop/internal/errors"
	"github.com/quickhop/quickhop/internal/events"
	"github.com/quickhop/quickhop/internal/models"
	"github.com/quickhop/quickhop/internal/repository"
)

// memStore is an in-memory stand-in for Postgres. One mutex guards all
// state; fakeClaimStore holds it for a whole resolution, which mirrors
// the row lock serializing concurrent resolvers on a request.
type memStore struct {
	mu         sync.Mutex
	profiles   map[string]*models.Profile
	deliveries map[string]*models.Delivery
	dropOffs   map[string][]*models.DropOff
	requests   map[string]*models.DeliveryRequest
	responses  map[string][]*models.RiderResponse
	clock      time.Time
	nextSeq    int64
}

func newMemStore() *memStore {
	return &memStore{
		profiles:   make(map[string]*models.Profile),
		deliveries: make(map[string]*models.Delivery),
		dropOffs:   make(map[string][]*models.DropOff),
		requests:   make(map[string]*models.DeliveryRequest),
		responses:  make(map[string][]*models.RiderResponse),
		clock:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// tick hands out strictly increasing timestamps, standing in for the
// database clock that orders the response ledger.
func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

func (m *memStore) addRider(available bool) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.profiles[id] = &models.Profile{
		ID:          id,
		Email:       id + "@riders.test",
		Name:        "Rider " + id[:8],
		Role:        models.RoleRider,
		IsAvailable: &available,
	}
	return id
}

func (m *memStore) addDelivery(dropOffCount int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries[id] = &models.Delivery{
		ID:            id,
		BusinessID:    uuid.New().String(),
		BusinessName:  "Crumb & Co",
		PickupAddress: "1 MG Road",
		Status:        models.DeliveryStatusPending,
	}
	for i := 0; i < dropOffCount; i++ {
		m.dropOffs[id] = append(m.dropOffs[id], &models.DropOff{
			ID:         uuid.New().String(),
			DeliveryID: id,
			Status:     models.DropOffStatusPending,
			Sequence:   i + 1,
		})
	}
	return id
}

type fakeProfileRepo struct{ s *memStore }

func (r *fakeProfileRepo) Create(ctx context.Context, p *models.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	r.s.profiles[p.ID] = p
	return nil
}

func (r *fakeProfileRepo) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProfileRepo) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.profiles {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeProfileRepo) ListRiders(ctx context.Context) ([]*models.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	riders := make([]*models.Profile, 0)
	for _, p := range r.s.profiles {
		if p.Role == models.RoleRider {
			cp := *p
			riders = append(riders, &cp)
		}
	}
	return riders, nil
}

func (r *fakeProfileRepo) SetAvailability(ctx context.Context, riderID string, available bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.setAvailabilityLocked(riderID, available)
}

func (r *fakeProfileRepo) SetAvailabilityTx(ctx context.Context, tx *sqlx.Tx, riderID string, available bool) error {
	return r.setAvailabilityLocked(riderID, available)
}

func (r *fakeProfileRepo) setAvailabilityLocked(riderID string, available bool) error {
	if p, ok := r.s.profiles[riderID]; ok && p.Role == models.RoleRider {
		v := available
		p.IsAvailable = &v
	}
	return nil
}

type fakeDeliveryRepo struct{ s *memStore }

func (r *fakeDeliveryRepo) Create(ctx context.Context, d *models.Delivery) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	d.Status = models.DeliveryStatusPending
	r.s.deliveries[d.ID] = d
	return nil
}

func (r *fakeDeliveryRepo) GetByID(ctx context.Context, id string) (*models.Delivery, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deliveries[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDeliveryRepo) ListByBusiness(ctx context.Context, businessID string) ([]*models.Delivery, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Delivery, 0)
	for _, d := range r.s.deliveries {
		if d.BusinessID == businessID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeDeliveryRepo) ListAll(ctx context.Context) ([]*models.Delivery, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Delivery, 0)
	for _, d := range r.s.deliveries {
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeDeliveryRepo) GetActiveByRiderID(ctx context.Context, riderID string) (*models.Delivery, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.deliveries {
		if d.RiderID != nil && *d.RiderID == riderID && d.IsActive() && d.Status != models.DeliveryStatusPending {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeDeliveryRepo) UpdateStatus(ctx context.Context, id, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d, ok := r.s.deliveries[id]; ok {
		d.Status = status
	}
	return nil
}

func (r *fakeDeliveryRepo) AssignRider(ctx context.Context, id, riderID, riderName, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.assignLocked(id, riderID, riderName, status)
}

func (r *fakeDeliveryRepo) AssignRiderTx(ctx context.Context, tx *sqlx.Tx, id, riderID, riderName, status string) error {
	return r.assignLocked(id, riderID, riderName, status)
}

func (r *fakeDeliveryRepo) assignLocked(id, riderID, riderName, status string) error {
	if d, ok := r.s.deliveries[id]; ok {
		d.RiderID = &riderID
		d.RiderName = &riderName
		d.Status = status
	}
	return nil
}

type fakeDropOffRepo struct{ s *memStore }

func (r *fakeDropOffRepo) CreateBatch(ctx context.Context, dropOffs []*models.DropOff) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range dropOffs {
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		r.s.dropOffs[d.DeliveryID] = append(r.s.dropOffs[d.DeliveryID], d)
	}
	return nil
}

func (r *fakeDropOffRepo) GetByID(ctx context.Context, id string) (*models.DropOff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, list := range r.s.dropOffs {
		for _, d := range list {
			if d.ID == id {
				cp := *d
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (r *fakeDropOffRepo) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*models.DropOff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, list := range r.s.dropOffs {
		for _, d := range list {
			if d.TrackingNumber != nil && *d.TrackingNumber == trackingNumber {
				cp := *d
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (r *fakeDropOffRepo) GetActiveByPhone(ctx context.Context, phone string) (*models.DropOff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, list := range r.s.dropOffs {
		for _, d := range list {
			if d.CustomerPhone == phone && d.Status != models.DropOffStatusDelivered {
				cp := *d
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (r *fakeDropOffRepo) ListByDelivery(ctx context.Context, deliveryID string) ([]*models.DropOff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]*models.DropOff(nil), r.s.dropOffs[deliveryID]...), nil
}

func (r *fakeDropOffRepo) CountByDelivery(ctx context.Context, deliveryID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.dropOffs[deliveryID]), nil
}

func (r *fakeDropOffRepo) MarkDelivered(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, list := range r.s.dropOffs {
		for _, d := range list {
			if d.ID == id {
				d.Status = models.DropOffStatusDelivered
				now := r.s.tick()
				d.DeliveredAt = &now
			}
		}
	}
	return nil
}

func (r *fakeDropOffRepo) UpdateStatusByDelivery(ctx context.Context, deliveryID, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.dropOffs[deliveryID] {
		if d.Status != models.DropOffStatusDelivered {
			d.Status = status
		}
	}
	return nil
}

func (r *fakeDropOffRepo) AllDelivered(ctx context.Context, deliveryID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.dropOffs[deliveryID] {
		if d.Status != models.DropOffStatusDelivered {
			return false, nil
		}
	}
	return true, nil
}

type fakeRequestRepo struct{ s *memStore }

func (r *fakeRequestRepo) Create(ctx context.Context, req *models.DeliveryRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.Status = models.RequestStatusPending
	req.CreatedAt = r.s.tick()
	r.s.requests[req.ID] = req
	return nil
}

func (r *fakeRequestRepo) GetByID(ctx context.Context, id string) (*models.DeliveryRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.getLocked(id)
}

func (r *fakeRequestRepo) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.DeliveryRequest, error) {
	return r.getLocked(id)
}

func (r *fakeRequestRepo) getLocked(id string) (*models.DeliveryRequest, error) {
	req, ok := r.s.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (r *fakeRequestRepo) ListPending(ctx context.Context) ([]*models.DeliveryRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pending := make([]*models.DeliveryRequest, 0)
	for _, req := range r.s.requests {
		if req.Status == models.RequestStatusPending {
			cp := *req
			pending = append(pending, &cp)
		}
	}
	return pending, nil
}

func (r *fakeRequestRepo) MarkAcceptedTx(ctx context.Context, tx *sqlx.Tx, id, riderID string, acceptedAt time.Time) (bool, error) {
	req, ok := r.s.requests[id]
	if !ok || req.Status != models.RequestStatusPending {
		return false, nil
	}
	req.Status = models.RequestStatusAccepted
	req.AcceptedByRiderID = &riderID
	req.AcceptedAt = &acceptedAt
	return true, nil
}

func (r *fakeRequestRepo) CancelByDeliveryID(ctx context.Context, deliveryID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, req := range r.s.requests {
		if req.DeliveryID == deliveryID && req.Status == models.RequestStatusPending {
			req.Status = models.RequestStatusCancelled
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRequestRepo) ExpireOverdue(ctx context.Context, now time.Time) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	expired := make([]string, 0)
	for _, req := range r.s.requests {
		if req.Status == models.RequestStatusPending && req.ExpiresAt != nil && req.ExpiresAt.Before(now) {
			req.Status = models.RequestStatusExpired
			expired = append(expired, req.ID)
		}
	}
	return expired, nil
}

type fakeResponseRepo struct{ s *memStore }

func (r *fakeResponseRepo) Create(ctx context.Context, resp *models.RiderResponse) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.responses[resp.DeliveryRequestID] {
		if existing.RiderID == resp.RiderID {
			return apperrors.ErrDuplicateResponse
		}
	}
	resp.ID = uuid.New().String()
	resp.ResponseTimestamp = r.s.tick()
	r.s.nextSeq++
	resp.Seq = r.s.nextSeq
	resp.CreatedAt = resp.ResponseTimestamp
	cp := *resp
	r.s.responses[resp.DeliveryRequestID] = append(r.s.responses[resp.DeliveryRequestID], &cp)
	return nil
}

func (r *fakeResponseRepo) GetByRequestAndRider(ctx context.Context, requestID, riderID string) (*models.RiderResponse, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, resp := range r.s.responses[requestID] {
		if resp.RiderID == riderID {
			cp := *resp
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeResponseRepo) ListByRequest(ctx context.Context, requestID string) ([]*models.RiderResponse, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]*models.RiderResponse(nil), r.s.responses[requestID]...), nil
}

func (r *fakeResponseRepo) EarliestAcceptorTx(ctx context.Context, tx *sqlx.Tx, requestID string) (string, error) {
	return r.earliestLocked(requestID)
}

func (r *fakeResponseRepo) earliestLocked(requestID string) (string, error) {
	var earliest *models.RiderResponse
	for _, resp := range r.s.responses[requestID] {
		if resp.Action != models.ResponseActionAccepted {
			continue
		}
		if earliest == nil ||
			resp.ResponseTimestamp.Before(earliest.ResponseTimestamp) ||
			(resp.ResponseTimestamp.Equal(earliest.ResponseTimestamp) && resp.Seq < earliest.Seq) {
			earliest = resp
		}
	}
	if earliest == nil {
		return "", nil
	}
	return earliest.RiderID, nil
}

// fakeClaimStore serializes resolutions with the store mutex and rolls
// nothing back; the service only writes after all its checks pass.
type fakeClaimStore struct {
	s         *memStore
	requests  *fakeRequestRepo
	responses *fakeResponseRepo
	delivers  *fakeDeliveryRepo
	profiles  *fakeProfileRepo
}

func (f *fakeClaimStore) WithTx(ctx context.Context, fn func(tx repository.ClaimTx) error) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return fn(f)
}

func (f *fakeClaimStore) GetRequestForUpdate(ctx context.Context, requestID string) (*models.DeliveryRequest, error) {
	return f.requests.getLocked(requestID)
}

func (f *fakeClaimStore) EarliestAcceptor(ctx context.Context, requestID string) (string, error) {
	return f.responses.earliestLocked(requestID)
}

func (f *fakeClaimStore) MarkAccepted(ctx context.Context, requestID, riderID string, acceptedAt time.Time) (bool, error) {
	return f.requests.MarkAcceptedTx(ctx, nil, requestID, riderID, acceptedAt)
}

func (f *fakeClaimStore) AssignRider(ctx context.Context, deliveryID, riderID, riderName, status string) error {
	return f.delivers.assignLocked(deliveryID, riderID, riderName, status)
}

func (f *fakeClaimStore) SetRiderAvailability(ctx context.Context, riderID string, available bool) error {
	return f.profiles.setAvailabilityLocked(riderID, available)
}

type fakeRiderCache struct {
	mu     sync.Mutex
	active map[string]string
}

func newFakeRiderCache() *fakeRiderCache {
	return &fakeRiderCache{active: make(map[string]string)}
}

func (c *fakeRiderCache) SetActiveDelivery(ctx context.Context, riderID, deliveryID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[riderID] = deliveryID
	return nil
}

func (c *fakeRiderCache) GetActiveDelivery(ctx context.Context, riderID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[riderID], nil
}

func (c *fakeRiderCache) ClearActiveDelivery(ctx context.Context, riderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, riderID)
	return nil
}

type claimFixture struct {
	store    *memStore
	cache    *fakeRiderCache
	service  ClaimService
	profiles *fakeProfileRepo
	requests *fakeRequestRepo
}

func newClaimFixture(t *testing.T) *claimFixture {
	t.Helper()
	store := newMemStore()
	profiles := &fakeProfileRepo{s: store}
	deliveries := &fakeDeliveryRepo{s: store}
	dropOffs := &fakeDropOffRepo{s: store}
	requests := &fakeRequestRepo{s: store}
	responses := &fakeResponseRepo{s: store}
	claimStore := &fakeClaimStore{
		s:         store,
		requests:  requests,
		responses: responses,
		delivers:  deliveries,
		profiles:  profiles,
	}
	cache := newFakeRiderCache()

	svc := NewClaimService(claimStore, requests, responses, deliveries, dropOffs, profiles, cache, events.NopPublisher{}, 30*time.Minute)
	return &claimFixture{
		store:    store,
		cache:    cache,
		service:  svc,
		profiles: profiles,
		requests: requests,
	}
}

// setNow pins the service clock so expiry is deterministic.
func (f *claimFixture) setNow(now time.Time) {
	f.service.(*claimService).now = func() time.Time { return now }
}

func (f *claimFixture) broadcast(t *testing.T, deliveryID string) *models.DeliveryRequest {
	t.Helper()
	request, err := f.service.BroadcastNewRequest(context.Background(), deliveryID)
	if err != nil {
		t.Fatalf("BroadcastNewRequest() error = %v", err)
	}
	return request
}

func TestBroadcastNewRequest(t *testing.T) {
	f := newClaimFixture(t)
	deliveryID := f.store.addDelivery(2)

	request := f.broadcast(t, deliveryID)

	if request.Status != models.RequestStatusPending {
		t.Errorf("request status = %q, want %q", request.Status, models.RequestStatusPending)
	}
	if request.DeliveryID != deliveryID {
		t.Errorf("request delivery = %q, want %q", request.DeliveryID, deliveryID)
	}
	if request.ExpiresAt == nil {
		t.Fatal("expected expires_at to be set")
	}
}

func TestBroadcastNewRequestMissingDelivery(t *testing.T) {
	f := newClaimFixture(t)

	_, err := f.service.BroadcastNewRequest(context.Background(), uuid.New().String())
	apiErr, ok := err.(*apperrors.APIError)
	if !ok || apiErr.StatusCode != 404 {
		t.Errorf("BroadcastNewRequest() error = %v, want 404", err)
	}
}

func TestBroadcastNewRequestNoDropOffs(t *testing.T) {
	f := newClaimFixture(t)
	deliveryID := f.store.addDelivery(0)

	_, err := f.service.BroadcastNewRequest(context.Background(), deliveryID)
	if err != apperrors.ErrNoDropOffs {
		t.Errorf("BroadcastNewRequest() error = %v, want ErrNoDropOffs", err)
	}
}

func TestAcceptRequestSingleRider(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()
	deliveryID := f.store.addDelivery(2)
	riderID := f.store.addRider(true)
	request := f.broadcast(t, deliveryID)

	gotDeliveryID, err := f.service.AcceptRequest(ctx, request.ID, riderID)
	if err != nil {
		t.Fatalf("AcceptRequest() error = %v", err)
	}
	if gotDeliveryID != deliveryID {
		t.Errorf("AcceptRequest() delivery = %q, want %q", gotDeliveryID, deliveryID)
	}

	f.store.mu.Lock()
	delivery := f.store.deliveries[deliveryID]
	req := f.store.requests[request.ID]
	rider := f.store.profiles[riderID]
	f.store.mu.Unlock()

	if delivery.Status != models.DeliveryStatusPickedUp {
		t.Errorf("delivery status = %q, want %q", delivery.Status, models.DeliveryStatusPickedUp)
	}
	if delivery.RiderID == nil || *delivery.RiderID != riderID {
		t.Errorf("delivery rider = %v, want %q", delivery.RiderID, riderID)
	}
	if req.Status != models.RequestStatusAccepted {
		t.Errorf("request status = %q, want %q", req.Status, models.RequestStatusAccepted)
	}
	if req.AcceptedByRiderID == nil || *req.AcceptedByRiderID != riderID {
		t.Errorf("request accepted_by = %v, want %q", req.AcceptedByRiderID, riderID)
	}
	if rider.IsAvailable == nil || *rider.IsAvailable {
		t.Error("winning rider should be marked unavailable")
	}

	cached, _ := f.cache.GetActiveDelivery(ctx, riderID)
	if cached != deliveryID {
		t.Errorf("cached active delivery = %q, want %q", cached, deliveryID)
	}
}

func TestAcceptRequestAfterClaim(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()
	deliveryID := f.store.addDelivery(1)
	winner := f.store.addRider(true)
	loser := f.store.addRider(true)
	request := f.broadcast(t, deliveryID)

	if _, err := f.service.AcceptRequest(ctx, request.ID, winner); err != nil {
		t.Fatalf("AcceptRequest(winner) error = %v", err)
	}

	_, err := f.service.AcceptRequest(ctx, request.ID, loser)
	if err != apperrors.ErrAlreadyClaimed {
		t.Errorf("AcceptRequest(loser) error = %v, want ErrAlreadyClaimed", err)
	}

	f.store.mu.Lock()
	delivery := f.store.deliveries[deliveryID]
	loserProfile := f.store.profiles[loser]
	f.store.mu.Unlock()

	if *delivery.RiderID != winner {
		t.Errorf("delivery rider = %q, want winner %q", *delivery.RiderID, winner)
	}
	if loserProfile.IsAvailable == nil || !*loserProfile.IsAvailable {
		t.Error("losing rider must stay available")
	}
}

func TestResolveAcceptanceNotEarliest(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()
	deliveryID := f.store.addDelivery(1)
	first := f.store.addRider(true)
	second := f.store.addRider(true)
	request := f.broadcast(t, deliveryID)

	// Both responses land before either resolution runs. The later
	// acceptor resolves first and must still lose to the ledger order.
	if _, err := f.service.RecordResponse(ctx, request.ID, first, models.ResponseActionAccepted); err != nil {
		t.Fatalf("RecordResponse(first) error = %v", err)
	}
	if _, err := f.service.RecordResponse(ctx, request.ID, second, models.ResponseActionAccepted); err != nil {
		t.Fatalf("RecordResponse(second) error = %v", err)
	}

	if _, err := f.service.ResolveAcceptance(ctx, request.ID, second); err != apperrors.ErrNotEarliestAcceptor {
		t.Errorf("ResolveAcceptance(second) error = %v, want ErrNotEarliestAcceptor", err)
	}

	gotDeliveryID, err := f.service.ResolveAcceptance(ctx, request.ID, first)
	if err != nil {
		t.Fatalf("ResolveAcceptance(first) error = %v", err)
	}
	if gotDeliveryID != deliveryID {
		t.Errorf("ResolveAcceptance(first) delivery = %q, want %q", gotDeliveryID, deliveryID)
	}
}

func TestResolveAcceptanceTwiceSameRider(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()
	deliveryID := f.store.addDelivery(1)
	riderID := f.store.addRider(true)
	request := f.broadcast(t, deliveryID)

	if _, err := f.service.RecordResponse(ctx, request.ID, riderID, models.ResponseActionAccepted); err != nil {
		t.Fatalf("RecordResponse() error = %v", err)
	}

	gotDeliveryID, err := f.service.ResolveAcceptance(ctx, request.ID, riderID)
	if err != nil {
		t.Fatalf("ResolveAcceptance() error = %v", err)
	}
	if gotDeliveryID != deliveryID {
		t.Errorf("ResolveAcceptance() delivery = %q, want %q", gotDeliveryID, deliveryID)
	}

	// A repeated resolution, client retry or duplicated message, must
	// refuse: the request is already claimed, even by its own winner.
	if _, err := f.service.ResolveAcceptance(ctx, request.ID, riderID); err != apperrors.ErrAlreadyClaimed {
		t.Errorf("ResolveAcceptance() second call error = %v, want ErrAlreadyClaimed", err)
	}

	f.store.mu.Lock()
	req := f.store.requests[request.ID]
	f.store.mu.Unlock()
	if req.AcceptedByRiderID == nil || *req.AcceptedByRiderID != riderID {
		t.Errorf("request accepted_by = %v, want %q", req.AcceptedByRiderID, riderID)
	}
}

func TestResolveAcceptanceTimestampTie(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()
	deliveryID := f.store.addDelivery(1)
	first := f.store.addRider(true)
	second := f.store.addRider(true)
	request := f.broadcast(t, deliveryID)

	if _, err := f.service.RecordResponse(ctx, request.ID, first, models.ResponseActionAccepted); err != nil {
		t.Fatalf("RecordResponse(first) error = %v", err)
	}
	if _, err := f.service.RecordResponse(ctx, request.ID, second, models.ResponseActionAccepted); err != nil {
		t.Fatalf("RecordResponse(second) error = %v", err)
	}

	// Collapse both responses onto the same instant. The sequence must
	// break the tie in insertion order, so the first recorder still wins.
	f.store.mu.Lock()
	responses := f.store.responses[request.ID]
	responses[1].ResponseTimestamp = responses[0].ResponseTimestamp
	f.store.mu.Unlock()

	if _, err := f.service.ResolveAcceptance(ctx, request.ID, second); err != apperrors.ErrNotEarliestAcceptor {
		t.Errorf("ResolveAcceptance(second) error = %v, want ErrNotEarliestAcceptor", err)
	}

	gotDeliveryID, err := f.service.ResolveAcceptance(ctx, request.ID, first)
	if err != nil {
		t.Fatalf("ResolveAcceptance(first) error = %v", err)
	}
	if gotDeliveryID != deliveryID {
		t.Errorf("ResolveAcceptance(first) delivery = %q, want %q", gotDeliveryID, deliveryID)
	}
}

func TestAcceptRequestDuplicateResponse(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()
	deliveryID := f.store.addDelivery(1)
	riderID := f.store.addRider(true)
	otherDeliveryID := f.store.addDelivery(1)
	request := f.broadcast(t, deliveryID)
	otherRequest := f.broadcast(t, otherDeliveryID)

	if err := f.service.RejectRequest(ctx, request.ID, riderID); err != nil {
		t.Fatalf("RejectRequest() error = %v", err)
	}

	// The rejection is on the ledger; flipping to accept is refused.
	_, err := f.service.AcceptRequest(ctx, request.ID, riderID)
	if err != apperrors.ErrDuplicateResponse {
		t.Errorf("AcceptRequest() after reject error = %v, want ErrDuplicateResponse", err)
	}

	// A duplicate rejection is benign.
	if err := f.service.RejectRequest(ctx, request.ID, riderID); err != nil {
		t.Errorf("RejectRequest() duplicate error = %v, want nil", err)
	}

	// The ledger is per request; the same rider still acts elsewhere.
	if _, err := f.service.AcceptRequest(ctx, otherRequest.ID, riderID); err != nil {
		t.Errorf("AcceptRequest() on other request error = %v", err)
	}
}

func TestAcceptRequestUnknownRequest(t *testing.T) {
	f := newClaimFixture(t)
	riderID := f.store.addRider(true)

	_, err := f.service.AcceptRequest(context.Background(), uuid.New().String(), riderID)
	if err != apperrors.ErrRequestNotFound {
		t.Errorf("AcceptRequest() error = %v, want ErrRequestNotFound", err)
	}
}

func TestAcceptRequestCancelled(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()
	deliveryID := f.store.addDelivery(1)
	riderID := f.store.addRider(true)
	request := f.broadcast(t, deliveryID)

	if _, err := f.requests.CancelByDeliveryID(ctx, deliveryID); err != nil {
		t.Fatalf("CancelByDeliveryID() error = %v", err)
	}

	// A cancelled request is gone from the rider's point of view.
	_, err := f.service.AcceptRequest(ctx, request.ID, riderID)
	if err != apperrors.ErrRequestNotFound {
		t.Errorf("AcceptRequest() error = %v, want ErrRequestNotFound", err)
	}
}

func TestAcceptRequestExpired(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()
	deliveryID := f.store.addDelivery(1)
	riderID := f.store.addRider(true)
	request := f.broadcast(t, deliveryID)

	f.setNow(request.ExpiresAt.Add(time.Minute))

	_, err := f.service.AcceptRequest(ctx, request.ID, riderID)
	if err != apperrors.ErrRequestExpired {
		t.Errorf("AcceptRequest() error = %v, want ErrRequestExpired", err)
	}
}

func TestAcceptRequestRiderUnavailable(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()
	deliveryID := f.store.addDelivery(1)
	riderID := f.store.addRider(false)
	request := f.broadcast(t, deliveryID)

	_, err := f.service.AcceptRequest(ctx, request.ID, riderID)
	if err != apperrors.ErrRiderUnavailable {
		t.Errorf("AcceptRequest() error = %v, want ErrRiderUnavailable", err)
	}
}

func TestConcurrentClaimsSingleWinner(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()
	deliveryID := f.store.addDelivery(2)
	request := f.broadcast(t, deliveryID)

	const numRiders = 25
	riderIDs := make([]string, numRiders)
	for i := range riderIDs {
		riderIDs[i] = f.store.addRider(true)
	}

	results := make([]error, numRiders)
	var wg sync.WaitGroup
	for i, riderID := range riderIDs {
		wg.Add(1)
		go func(i int, riderID string) {
			defer wg.Done()
			_, results[i] = f.service.AcceptRequest(ctx, request.ID, riderID)
		}(i, riderID)
	}
	wg.Wait()

	winners := 0
	var winnerID string
	for i, err := range results {
		switch err {
		case nil:
			winners++
			winnerID = riderIDs[i]
		case apperrors.ErrAlreadyClaimed, apperrors.ErrNotEarliestAcceptor:
		default:
			t.Errorf("rider %d: unexpected error %v", i, err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}

	f.store.mu.Lock()
	delivery := f.store.deliveries[deliveryID]
	req := f.store.requests[request.ID]
	availableCount := 0
	for _, riderID := range riderIDs {
		if p := f.store.profiles[riderID]; p.IsAvailable != nil && *p.IsAvailable {
			availableCount++
		}
	}
	f.store.mu.Unlock()

	if delivery.RiderID == nil || *delivery.RiderID != winnerID {
		t.Errorf("delivery rider = %v, want winner %q", delivery.RiderID, winnerID)
	}
	if req.AcceptedByRiderID == nil || *req.AcceptedByRiderID != winnerID {
		t.Errorf("request accepted_by = %v, want winner %q", req.AcceptedByRiderID, winnerID)
	}
	if availableCount != numRiders-1 {
		t.Errorf("available riders after race = %d, want %d", availableCount, numRiders-1)
	}
}

func TestPendingRequests(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		deliveryID := f.store.addDelivery(i + 1)
		f.broadcast(t, deliveryID)
	}

	claimedDeliveryID := f.store.addDelivery(1)
	claimedRequest := f.broadcast(t, claimedDeliveryID)
	riderID := f.store.addRider(true)
	if _, err := f.service.AcceptRequest(ctx, claimedRequest.ID, riderID); err != nil {
		t.Fatalf("AcceptRequest() error = %v", err)
	}

	pending, err := f.service.PendingRequests(ctx)
	if err != nil {
		t.Fatalf("PendingRequests() error = %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("pending count = %d, want 3", len(pending))
	}
	for _, req := range pending {
		if req.ID == claimedRequest.ID {
			t.Error("claimed request still listed as pending")
		}
		if req.Delivery == nil {
			t.Error("pending request missing delivery details")
		}
		if req.DropOffCount == 0 {
			t.Error("pending request missing drop-off count")
		}
	}
}

func TestExpireOverdueRequests(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()

	overdueDeliveryID := f.store.addDelivery(1)
	overdueRequest := f.broadcast(t, overdueDeliveryID)

	freshDeliveryID := f.store.addDelivery(1)
	freshRequest := f.broadcast(t, freshDeliveryID)

	// Push only the first request past its window.
	f.store.mu.Lock()
	past := f.store.clock.Add(-time.Minute)
	f.store.requests[overdueRequest.ID].ExpiresAt = &past
	f.store.mu.Unlock()

	f.setNow(f.store.clock)

	expired, err := f.service.ExpireOverdueRequests(ctx)
	if err != nil {
		t.Fatalf("ExpireOverdueRequests() error = %v", err)
	}
	if expired != 1 {
		t.Errorf("expired count = %d, want 1", expired)
	}

	f.store.mu.Lock()
	overdueStatus := f.store.requests[overdueRequest.ID].Status
	freshStatus := f.store.requests[freshRequest.ID].Status
	f.store.mu.Unlock()

	if overdueStatus != models.RequestStatusExpired {
		t.Errorf("overdue request status = %q, want %q", overdueStatus, models.RequestStatusExpired)
	}
	if freshStatus != models.RequestStatusPending {
		t.Errorf("fresh request status = %q, want %q", freshStatus, models.RequestStatusPending)
	}
}

func TestRecordResponseInvalidAction(t *testing.T) {
	f := newClaimFixture(t)
	deliveryID := f.store.addDelivery(1)
	riderID := f.store.addRider(true)
	request := f.broadcast(t, deliveryID)

	for _, action := range []string{"", "maybe", "ACCEPTED"} {
		_, err := f.service.RecordResponse(context.Background(), request.ID, riderID, action)
		apiErr, ok := err.(*apperrors.APIError)
		if !ok || apiErr.StatusCode != 400 {
			t.Errorf("RecordResponse(%q) error = %v, want 400", action, err)
		}
	}
}

func TestGetRequest(t *testing.T) {
	f := newClaimFixture(t)
	deliveryID := f.store.addDelivery(2)
	request := f.broadcast(t, deliveryID)

	got, err := f.service.GetRequest(context.Background(), request.ID)
	if err != nil {
		t.Fatalf("GetRequest() error = %v", err)
	}
	if got.ID != request.ID {
		t.Errorf("GetRequest() id = %q, want %q", got.ID, request.ID)
	}
	if got.DropOffCount != 2 {
		t.Errorf("GetRequest() drop-off count = %d, want 2", got.DropOffCount)
	}

	if _, err := f.service.GetRequest(context.Background(), uuid.New().String()); err != apperrors.ErrRequestNotFound {
		t.Errorf("GetRequest(unknown) error = %v, want ErrRequestNotFound", err)
	}
}

func TestRejectRequestUnknownRider(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()
	deliveryID := f.store.addDelivery(1)
	request := f.broadcast(t, deliveryID)

	err := f.service.RejectRequest(ctx, request.ID, uuid.New().String())
	apiErr, ok := err.(*apperrors.APIError)
	if !ok || apiErr.StatusCode != 404 {
		t.Errorf("RejectRequest() error = %v, want 404", err)
	}

	f.store.mu.Lock()
	recorded := len(f.store.responses[request.ID])
	f.store.mu.Unlock()
	if recorded != 0 {
		t.Errorf("responses on ledger = %d, want 0", recorded)
	}
}

func TestRejectDoesNotBlockOtherRiders(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()
	deliveryID := f.store.addDelivery(1)
	decliner := f.store.addRider(true)
	acceptor := f.store.addRider(true)
	request := f.broadcast(t, deliveryID)

	if err := f.service.RejectRequest(ctx, request.ID, decliner); err != nil {
		t.Fatalf("RejectRequest() error = %v", err)
	}

	if _, err := f.service.AcceptRequest(ctx, request.ID, acceptor); err != nil {
		t.Fatalf("AcceptRequest() after another rider rejected error = %v", err)
	}

	f.store.mu.Lock()
	req := f.store.requests[request.ID]
	f.store.mu.Unlock()
	if req.AcceptedByRiderID == nil || *req.AcceptedByRiderID != acceptor {
		t.Errorf("request accepted_by = %v, want %q", req.AcceptedByRiderID, acceptor)
	}
}
