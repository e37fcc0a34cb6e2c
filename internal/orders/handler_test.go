package orders

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/lanch-pos/lanch-pos/internal/shared"
)

type fakeIdemStore struct {
	keys map[string]bool
}

func newFakeIdemStore() *fakeIdemStore {
	return &fakeIdemStore{keys: map[string]bool{}}
}

func (s *fakeIdemStore) CheckAndInsert(_ context.Context, key, module string) error {
	if s.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	s.keys[key] = true
	return nil
}

func (s *fakeIdemStore) Delete(_ context.Context, key string) error {
	delete(s.keys, key)
	return nil
}

func newOrdersServer(repo *fakeRepo, idem IdempotencyPort) http.Handler {
	h := NewHandler(slog.New(slog.DiscardHandler), testService(repo), idem)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			actor := shared.Actor{UserID: 7, Username: "maria", Role: shared.RoleAttendant}
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), actor)))
		})
	})
	h.Routes(r)
	return r
}

const staffOrderBody = `{"customer_class":"STAFF","employee_id":5,"items":[{"product_id":1,"quantity":1}]}`

func postOrder(t *testing.T, srv http.Handler, idemKey string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(staffOrderBody))
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestCreateRejectsDuplicateIdempotencyKey(t *testing.T) {
	repo := seedRepo()
	srv := newOrdersServer(repo, newFakeIdemStore())

	rec := postOrder(t, srv, "req-abc-1")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postOrder(t, srv, "req-abc-1")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "Duplicate Request")
	require.Len(t, repo.orders, 1)
}

func TestCreateReleasesIdempotencyKeyWhenSettlementFails(t *testing.T) {
	repo := seedRepo()
	repo.ledger.closed[1] = true
	idem := newFakeIdemStore()
	srv := newOrdersServer(repo, idem)

	rec := postOrder(t, srv, "req-abc-2")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "Period Closed")
	require.False(t, idem.keys["req-abc-2"])

	// After the period reopens the same key must be accepted again.
	repo.ledger.closed[1] = false
	rec = postOrder(t, srv, "req-abc-2")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, repo.orders, 1)
}

func TestCreateWithoutIdempotencyKeySettlesEveryRequest(t *testing.T) {
	repo := seedRepo()
	srv := newOrdersServer(repo, newFakeIdemStore())

	require.Equal(t, http.StatusCreated, postOrder(t, srv, "").Code)
	require.Equal(t, http.StatusCreated, postOrder(t, srv, "").Code)
	require.Len(t, repo.orders, 2)
}
