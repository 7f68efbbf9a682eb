package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"fitbook.org/internal/auth"
	"fitbook.org/internal/booking"
	"fitbook.org/internal/events"
)

// --- in-memory stores ---

type memUsers struct {
	mu   sync.Mutex
	byID map[string]*auth.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*auth.User{}}
}

func (s *memUsers) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Email == u.Email {
			return auth.ErrConflict
		}
	}
	copied := *u
	s.byID[u.ID] = &copied
	return nil
}

func (s *memUsers) Find(_ context.Context, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *memUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *memUsers) LinkGoogleID(_ context.Context, userID, googleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return auth.ErrNotFound
	}
	u.GoogleID = googleID
	return nil
}

func (s *memUsers) UpdateRefreshTokenHash(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return auth.ErrNotFound
	}
	u.RefreshTokenHash = hash
	return nil
}

type memMemberships struct {
	mu   sync.Mutex
	byID map[string]*auth.Membership
}

func newMemMemberships() *memMemberships {
	return &memMemberships{byID: map[string]*auth.Membership{}}
}

func (s *memMemberships) Create(_ context.Context, m *auth.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(m)
}

func (s *memMemberships) insertLocked(m *auth.Membership) error {
	for _, existing := range s.byID {
		if existing.UserID == m.UserID && existing.BusinessID == m.BusinessID {
			return auth.ErrConflict
		}
	}
	copied := *m
	s.byID[m.ID] = &copied
	return nil
}

func (s *memMemberships) Find(_ context.Context, id string) (*auth.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	copied := *m
	return &copied, nil
}

func (s *memMemberships) FindByUserAndBusiness(_ context.Context, userID, businessID string) (*auth.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byID {
		if m.UserID == userID && m.BusinessID == businessID {
			copied := *m
			return &copied, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *memMemberships) List(_ context.Context) ([]*auth.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*auth.Membership
	for _, m := range s.byID {
		copied := *m
		result = append(result, &copied)
	}
	return result, nil
}

func (s *memMemberships) ListByBusiness(_ context.Context, businessID string) ([]*auth.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*auth.Membership
	for _, m := range s.byID {
		if m.BusinessID != businessID {
			continue
		}
		copied := *m
		result = append(result, &copied)
	}
	return result, nil
}

func (s *memMemberships) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

type memBusinesses struct {
	mu          sync.Mutex
	byID        map[string]*auth.Business
	memberships *memMemberships
}

func newMemBusinesses(memberships *memMemberships) *memBusinesses {
	return &memBusinesses{byID: map[string]*auth.Business{}, memberships: memberships}
}

func (s *memBusinesses) CreateWithOwner(_ context.Context, b *auth.Business, owner *auth.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships.mu.Lock()
	defer s.memberships.mu.Unlock()
	if err := s.memberships.insertLocked(owner); err != nil {
		return err
	}
	copied := *b
	s.byID[b.ID] = &copied
	return nil
}

func (s *memBusinesses) Find(_ context.Context, id string) (*auth.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (s *memBusinesses) List(_ context.Context) ([]*auth.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*auth.Business
	for _, b := range s.byID {
		copied := *b
		result = append(result, &copied)
	}
	return result, nil
}

type memBookingStore struct {
	mu       sync.Mutex
	sessions map[string]*booking.Session
	slots    map[string]*booking.Slot
	bookings map[string]*booking.Booking
}

func newMemBookingStore() *memBookingStore {
	return &memBookingStore{
		sessions: map[string]*booking.Session{},
		slots:    map[string]*booking.Slot{},
		bookings: map[string]*booking.Booking{},
	}
}

func (s *memBookingStore) CreateSessionWithSlots(_ context.Context, sess *booking.Session, slots []*booking.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.CreatedAt = time.Now().UTC()
	s.sessions[sess.ID] = sess
	for _, sl := range slots {
		s.slots[sl.ID] = sl
	}
	return nil
}

func (s *memBookingStore) FindSession(_ context.Context, id string) (*booking.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return sess, nil
}

func (s *memBookingStore) ListAvailabilities(_ context.Context, businessID string, from, to *time.Time) ([]*booking.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*booking.Availability
	for _, sess := range s.sessions {
		if sess.BusinessID != businessID {
			continue
		}
		av := &booking.Availability{Session: *sess}
		for _, sl := range s.slots {
			if sl.SessionID != sess.ID {
				continue
			}
			if from != nil && sl.EndTime.Before(*from) {
				continue
			}
			if to != nil && sl.StartTime.After(*to) {
				continue
			}
			av.Slots = append(av.Slots, *sl)
		}
		if len(av.Slots) > 0 {
			result = append(result, av)
		}
	}
	return result, nil
}

func (s *memBookingStore) CreateSlots(_ context.Context, slots []*booking.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range slots {
		if _, ok := s.sessions[sl.SessionID]; !ok {
			return booking.ErrNotFound
		}
		s.slots[sl.ID] = sl
	}
	return nil
}

func (s *memBookingStore) SlotBusinesses(_ context.Context, slotIDs []string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := map[string]string{}
	for _, id := range slotIDs {
		sl, ok := s.slots[id]
		if !ok {
			continue
		}
		sess, ok := s.sessions[sl.SessionID]
		if !ok {
			continue
		}
		result[id] = sess.BusinessID
	}
	return result, nil
}

func (s *memBookingStore) ListSlots(_ context.Context, f booking.SlotFilter) ([]*booking.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	booked := map[string]bool{}
	for _, b := range s.bookings {
		booked[b.SlotID] = true
	}
	var result []*booking.Slot
	for _, sl := range s.slots {
		if sl.SessionID != f.SessionID {
			continue
		}
		if f.OpenOnly && booked[sl.ID] {
			continue
		}
		copied := *sl
		copied.Booked = booked[sl.ID]
		result = append(result, &copied)
	}
	return result, nil
}

func (s *memBookingStore) CreateBookings(_ context.Context, bookings []*booking.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	taken := map[string]bool{}
	for _, b := range s.bookings {
		taken[b.SlotID] = true
	}
	for _, b := range bookings {
		if _, ok := s.slots[b.SlotID]; !ok {
			return booking.ErrNotFound
		}
		if taken[b.SlotID] {
			return booking.ErrSlotTaken
		}
		taken[b.SlotID] = true
	}
	for _, b := range bookings {
		b.CreatedAt = time.Now().UTC()
		s.bookings[b.ID] = b
	}
	return nil
}

func (s *memBookingStore) FindBooking(_ context.Context, id string) (*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return b, nil
}

func (s *memBookingStore) ListBookingsByUser(_ context.Context, userID string) ([]*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*booking.Booking
	for _, b := range s.bookings {
		if b.UserID == userID {
			result = append(result, b)
		}
	}
	return result, nil
}

func (s *memBookingStore) DeleteBooking(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[id]; !ok {
		return booking.ErrNotFound
	}
	delete(s.bookings, id)
	return nil
}

// --- harness ---

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	users := newMemUsers()
	memberships := newMemMemberships()
	businesses := newMemBusinesses(memberships)
	bookingStore := newMemBookingStore()

	tokens, err := auth.NewTokenService(users, "access-secret", "refresh-secret",
		auth.WithIssuer("fitbook-test"))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	authSvc, err := auth.NewService(users, tokens)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	catalog, err := auth.LoadCatalog(nil)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	guard, err := auth.NewGuard(catalog, memberships)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	businessSvc, err := auth.NewBusinessService(businesses)
	if err != nil {
		t.Fatalf("NewBusinessService: %v", err)
	}
	membershipSvc, err := auth.NewMembershipService(memberships)
	if err != nil {
		t.Fatalf("NewMembershipService: %v", err)
	}

	api := New(ReadyProbe{}, "test", Deps{
		Auth:        authSvc,
		Tokens:      tokens,
		Users:       users,
		Guard:       guard,
		Businesses:  businessSvc,
		Memberships: membershipSvc,
		Workouts:    booking.NewService(bookingStore),
		Stream:      events.New(),

		RateLimitBurst:     1000,
		RateLimitPerSecond: 1000,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	full := path
	if params != nil {
		full += "?" + params.Encode()
	}
	return c.do(http.MethodGet, full, nil, headers)
}

func (c *apiClient) signupAndLogin(name, email, password string) (string, auth.TokenPair) {
	c.t.Helper()
	resp := c.post("/v1/auth/signup", map[string]any{
		"name":     name,
		"email":    email,
		"password": password,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("unexpected signup status: %d", resp.StatusCode)
	}
	user := decode[auth.User](c.t, resp)

	loginResp := c.post("/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	if loginResp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected login status: %d", loginResp.StatusCode)
	}
	payload := decode[tokenResponse](c.t, loginResp)
	if payload.Tokens.AccessToken == "" || payload.Tokens.RefreshToken == "" {
		c.t.Fatalf("incomplete token pair: %+v", payload.Tokens)
	}
	if payload.User.ID != user.ID {
		c.t.Fatalf("login returned unexpected user: %s", payload.User.ID)
	}
	return user.ID, payload.Tokens
}

func bearerHeader(pair auth.TokenPair) map[string]string {
	return map[string]string{"Authorization": "Bearer " + pair.AccessToken}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// --- tests ---

func TestSignupLoginRefreshFlow(t *testing.T) {
	c := newTestAPI(t)
	_, pair := c.signupAndLogin("Alice", "alice@example.com", "secret1")

	// refresh returns a new pair and consumes the old token
	resp := c.post("/v1/auth/refresh", map[string]any{"refreshToken": pair.RefreshToken}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected refresh status: %d", resp.StatusCode)
	}
	next := decode[auth.TokenPair](t, resp)
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	replay := c.post("/v1/auth/refresh", map[string]any{"refreshToken": pair.RefreshToken}, nil)
	defer replay.Body.Close()
	if replay.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for replayed refresh token, got %d", replay.StatusCode)
	}

	fresh := c.post("/v1/auth/refresh", map[string]any{"refreshToken": next.RefreshToken}, nil)
	defer fresh.Body.Close()
	if fresh.StatusCode != http.StatusOK {
		t.Fatalf("expected rotated token to work, got %d", fresh.StatusCode)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	c := newTestAPI(t)
	c.signupAndLogin("Alice", "alice@example.com", "secret1")

	resp := c.post("/v1/auth/login", map[string]any{
		"email":    "alice@example.com",
		"password": "wrong",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	missing := c.post("/v1/auth/login", map[string]any{
		"email":    "nobody@example.com",
		"password": "secret1",
	}, nil)
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", missing.StatusCode)
	}
}

func TestLogoutRevokesRefreshAndIsIdempotent(t *testing.T) {
	c := newTestAPI(t)
	_, pair := c.signupAndLogin("Alice", "alice@example.com", "secret1")

	for i := 0; i < 2; i++ {
		resp := c.post("/v1/auth/logout", nil, bearerHeader(pair))
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("logout attempt %d: expected 200, got %d", i+1, resp.StatusCode)
		}
	}

	resp := c.post("/v1/auth/refresh", map[string]any{"refreshToken": pair.RefreshToken}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected revoked refresh token to fail, got %d", resp.StatusCode)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/v1/businesses", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	bad := c.get("/v1/businesses", nil, map[string]string{"Authorization": "Bearer nonsense"})
	defer bad.Body.Close()
	if bad.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", bad.StatusCode)
	}
}

func TestBusinessCreateGrantsOwnership(t *testing.T) {
	c := newTestAPI(t)
	_, pair := c.signupAndLogin("Alice", "alice@example.com", "secret1")

	resp := c.post("/v1/businesses", map[string]any{
		"name":        "Iron Temple",
		"houseNumber": "12",
		"street":      "Main St",
		"city":        "Springfield",
		"state":       "IL",
		"zipCode":     "62701",
		"phoneNumber": "+15550001111",
	}, bearerHeader(pair))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	b := decode[auth.Business](t, resp)

	// owner can immediately manage workouts in the new business
	avResp := c.post("/v1/workouts/availability", map[string]any{
		"businessId":  b.ID,
		"sessionName": "Morning Yoga",
		"availabilities": []map[string]any{
			{"startTime": "2025-07-01T08:00:00Z", "endTime": "2025-07-01T09:00:00Z"},
		},
	}, bearerHeader(pair))
	defer avResp.Body.Close()
	if avResp.StatusCode != http.StatusCreated {
		t.Fatalf("expected owner to set availability, got %d", avResp.StatusCode)
	}
}

func TestWorkoutCreateDeniedWithoutMembership(t *testing.T) {
	c := newTestAPI(t)
	_, owner := c.signupAndLogin("Alice", "alice@example.com", "secret1")
	_, outsider := c.signupAndLogin("Bob", "bob@example.com", "secret2")

	bResp := c.post("/v1/businesses", map[string]any{"name": "Iron Temple"}, bearerHeader(owner))
	if bResp.StatusCode != http.StatusCreated {
		t.Fatalf("create business: %d", bResp.StatusCode)
	}
	b := decode[auth.Business](t, bResp)

	resp := c.post("/v1/workouts/availability", map[string]any{
		"businessId":  b.ID,
		"sessionName": "HIIT",
		"availabilities": []map[string]any{
			{"startTime": "2025-07-01T08:00:00Z", "endTime": "2025-07-01T09:00:00Z"},
		},
	}, bearerHeader(outsider))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["error"] != "no membership" {
		t.Fatalf("unexpected reason: %v", body["error"])
	}
}

func TestBusinessContextMismatchDenied(t *testing.T) {
	c := newTestAPI(t)
	_, owner := c.signupAndLogin("Alice", "alice@example.com", "secret1")

	bResp := c.post("/v1/businesses", map[string]any{"name": "Iron Temple"}, bearerHeader(owner))
	if bResp.StatusCode != http.StatusCreated {
		t.Fatalf("create business: %d", bResp.StatusCode)
	}
	b := decode[auth.Business](t, bResp)

	resp := c.post("/v1/workouts/availability?businessId="+b.ID, map[string]any{
		"businessId":  "some-other-business",
		"sessionName": "HIIT",
		"availabilities": []map[string]any{
			{"startTime": "2025-07-01T08:00:00Z", "endTime": "2025-07-01T09:00:00Z"},
		},
	}, bearerHeader(owner))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["error"] != "business context mismatch" {
		t.Fatalf("unexpected reason: %v", body["error"])
	}
}

func TestMembershipDuplicateConflict(t *testing.T) {
	c := newTestAPI(t)
	_, owner := c.signupAndLogin("Alice", "alice@example.com", "secret1")
	bobID, _ := c.signupAndLogin("Bob", "bob@example.com", "secret2")

	bResp := c.post("/v1/businesses", map[string]any{"name": "Iron Temple"}, bearerHeader(owner))
	b := decode[auth.Business](t, bResp)

	create := func() *http.Response {
		return c.post("/v1/memberships", map[string]any{
			"userId":     bobID,
			"businessId": b.ID,
			"role":       "MEMBER",
		}, bearerHeader(owner))
	}

	first := create()
	defer first.Body.Close()
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.StatusCode)
	}
	second := create()
	defer second.Body.Close()
	if second.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate membership, got %d", second.StatusCode)
	}
}

func TestMembershipListingScopedToBusiness(t *testing.T) {
	c := newTestAPI(t)
	aliceID, alice := c.signupAndLogin("Alice", "alice@example.com", "secret1")
	_, carol := c.signupAndLogin("Carol", "carol@example.com", "secret2")

	gymAResp := c.post("/v1/businesses", map[string]any{"name": "Gym A"}, bearerHeader(alice))
	gymA := decode[auth.Business](t, gymAResp)
	gymBResp := c.post("/v1/businesses", map[string]any{"name": "Gym B"}, bearerHeader(carol))
	decode[auth.Business](t, gymBResp)

	resp := c.get("/v1/memberships", url.Values{"businessId": {gymA.ID}}, bearerHeader(alice))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decode[struct {
		Items []auth.Membership `json:"items"`
	}](t, resp)
	if len(payload.Items) != 1 {
		t.Fatalf("expected only gym A's membership, got %d", len(payload.Items))
	}
	if payload.Items[0].UserID != aliceID || payload.Items[0].BusinessID != gymA.ID {
		t.Fatalf("unexpected membership: %+v", payload.Items[0])
	}
}

func TestMemberBookingFlowAndConflict(t *testing.T) {
	c := newTestAPI(t)
	_, owner := c.signupAndLogin("Alice", "alice@example.com", "secret1")
	bobID, bob := c.signupAndLogin("Bob", "bob@example.com", "secret2")
	carolID, carol := c.signupAndLogin("Carol", "carol@example.com", "secret3")

	bResp := c.post("/v1/businesses", map[string]any{"name": "Iron Temple"}, bearerHeader(owner))
	b := decode[auth.Business](t, bResp)

	for _, userID := range []string{bobID, carolID} {
		mResp := c.post("/v1/memberships", map[string]any{
			"userId":     userID,
			"businessId": b.ID,
			"role":       "MEMBER",
		}, bearerHeader(owner))
		mResp.Body.Close()
	}

	avResp := c.post("/v1/workouts/availability", map[string]any{
		"businessId":  b.ID,
		"sessionName": "Spin",
		"availabilities": []map[string]any{
			{"startTime": "2025-07-01T08:00:00Z", "endTime": "2025-07-01T09:00:00Z"},
		},
	}, bearerHeader(owner))
	av := decode[booking.Availability](t, avResp)
	slotID := av.Slots[0].ID

	book := c.post("/v1/bookings", map[string]any{
		"businessId": b.ID,
		"slotIds":    []string{slotID},
	}, bearerHeader(bob))
	defer book.Body.Close()
	if book.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 booking, got %d", book.StatusCode)
	}

	again := c.post("/v1/bookings", map[string]any{
		"businessId": b.ID,
		"slotIds":    []string{slotID},
	}, bearerHeader(carol))
	defer again.Body.Close()
	if again.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for taken slot, got %d", again.StatusCode)
	}
}

func TestCrossBusinessBookingDenied(t *testing.T) {
	c := newTestAPI(t)
	_, aliceTokens := c.signupAndLogin("Alice", "alice@example.com", "secret1")
	bobID, bob := c.signupAndLogin("Bob", "bob@example.com", "secret2")
	_, carolTokens := c.signupAndLogin("Carol", "carol@example.com", "secret3")
	daveID, dave := c.signupAndLogin("Dave", "dave@example.com", "secret4")

	gymAResp := c.post("/v1/businesses", map[string]any{"name": "Gym A"}, bearerHeader(aliceTokens))
	gymA := decode[auth.Business](t, gymAResp)
	gymBResp := c.post("/v1/businesses", map[string]any{"name": "Gym B"}, bearerHeader(carolTokens))
	gymB := decode[auth.Business](t, gymBResp)

	// Bob belongs to gym A only, Dave to gym B only.
	mResp := c.post("/v1/memberships", map[string]any{
		"userId":     bobID,
		"businessId": gymA.ID,
		"role":       "MEMBER",
	}, bearerHeader(aliceTokens))
	mResp.Body.Close()
	mResp = c.post("/v1/memberships", map[string]any{
		"userId":     daveID,
		"businessId": gymB.ID,
		"role":       "MEMBER",
	}, bearerHeader(carolTokens))
	mResp.Body.Close()

	avResp := c.post("/v1/workouts/availability", map[string]any{
		"businessId":  gymB.ID,
		"sessionName": "Boxing",
		"availabilities": []map[string]any{
			{"startTime": "2025-07-01T08:00:00Z", "endTime": "2025-07-01T09:00:00Z"},
		},
	}, bearerHeader(carolTokens))
	av := decode[booking.Availability](t, avResp)
	slotID := av.Slots[0].ID

	// Naming gym A in the body must not let Bob book gym B's slot.
	resp := c.post("/v1/bookings", map[string]any{
		"businessId": gymA.ID,
		"slotIds":    []string{slotID},
	}, bearerHeader(bob))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for cross-business booking, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["error"] != "business context mismatch" {
		t.Fatalf("unexpected reason: %v", body["error"])
	}

	// Without a body business the slot's own business still governs.
	resp = c.post("/v1/bookings", map[string]any{
		"slotIds": []string{slotID},
	}, bearerHeader(bob))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without membership, got %d", resp.StatusCode)
	}
	body = decode[map[string]any](t, resp)
	if body["error"] != "no membership" {
		t.Fatalf("unexpected reason: %v", body["error"])
	}

	// The slot stayed open for gym B's own members.
	resp = c.post("/v1/bookings", map[string]any{
		"businessId": gymB.ID,
		"slotIds":    []string{slotID},
	}, bearerHeader(dave))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for gym B member, got %d", resp.StatusCode)
	}
}

func TestMemberCannotManageWorkouts(t *testing.T) {
	c := newTestAPI(t)
	_, owner := c.signupAndLogin("Alice", "alice@example.com", "secret1")
	bobID, bob := c.signupAndLogin("Bob", "bob@example.com", "secret2")

	bResp := c.post("/v1/businesses", map[string]any{"name": "Iron Temple"}, bearerHeader(owner))
	b := decode[auth.Business](t, bResp)

	mResp := c.post("/v1/memberships", map[string]any{
		"userId":     bobID,
		"businessId": b.ID,
		"role":       "MEMBER",
	}, bearerHeader(owner))
	mResp.Body.Close()

	resp := c.post("/v1/workouts/availability", map[string]any{
		"businessId":  b.ID,
		"sessionName": "HIIT",
		"availabilities": []map[string]any{
			{"startTime": "2025-07-01T08:00:00Z", "endTime": "2025-07-01T09:00:00Z"},
		},
	}, bearerHeader(bob))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["error"] != "insufficient permissions" {
		t.Fatalf("unexpected reason: %v", body["error"])
	}
}

func TestHealthAndInfoArePublic(t *testing.T) {
	c := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := c.get(path, nil, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, resp.StatusCode)
		}
	}
}
