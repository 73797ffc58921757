package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zidek-labs/bellrock/internal/aidcodec"
	"github.com/zidek-labs/bellrock/internal/ingest"
	"github.com/zidek-labs/bellrock/internal/keyregistry"
	"github.com/zidek-labs/bellrock/internal/keyvault"
	"github.com/zidek-labs/bellrock/internal/model"
	"github.com/zidek-labs/bellrock/internal/repository"
	"github.com/zidek-labs/bellrock/internal/resolver"
)

type memUsers struct{ byUID map[model.UID]model.User }

func (m *memUsers) Create(ctx context.Context, uid model.UID) error {
	m.byUID[uid] = model.User{UID: uid}
	return nil
}
func (m *memUsers) Exists(ctx context.Context, uid model.UID) (bool, error) {
	_, ok := m.byUID[uid]
	return ok, nil
}
func (m *memUsers) Get(ctx context.Context, uid model.UID) (*model.User, error) {
	u, ok := m.byUID[uid]
	if !ok {
		return nil, nil
	}
	return &u, nil
}
func (m *memUsers) Delete(ctx context.Context, uid model.UID) error { delete(m.byUID, uid); return nil }
func (m *memUsers) Count(ctx context.Context) (int, error)         { return len(m.byUID), nil }
func (m *memUsers) Clear(ctx context.Context) error                { m.byUID = map[model.UID]model.User{}; return nil }

type memKeys struct{ byUID map[model.UID][]byte }

func (m *memKeys) Put(ctx context.Context, uid model.UID, wrapped []byte) error {
	m.byUID[uid] = wrapped
	return nil
}
func (m *memKeys) Get(ctx context.Context, uid model.UID) ([]byte, error) { return m.byUID[uid], nil }
func (m *memKeys) Delete(ctx context.Context, uid model.UID) error        { delete(m.byUID, uid); return nil }
func (m *memKeys) GetAll(ctx context.Context) (map[model.UID][]byte, error) {
	out := make(map[model.UID][]byte, len(m.byUID))
	for k, v := range m.byUID {
		out[k] = v
	}
	return out, nil
}
func (m *memKeys) Clear(ctx context.Context) error { m.byUID = map[model.UID][]byte{}; return nil }

type memPeers struct{ byUID map[model.UID][]model.UID }

func (m *memPeers) Add(ctx context.Context, a, b model.UID) error {
	m.byUID[a] = append(m.byUID[a], b)
	m.byUID[b] = append(m.byUID[b], a)
	return nil
}
func (m *memPeers) Delete(ctx context.Context, a, b model.UID) error { return nil }
func (m *memPeers) Peers(ctx context.Context, uid model.UID) ([]model.UID, error) {
	return m.byUID[uid], nil
}
func (m *memPeers) DeleteAllFor(ctx context.Context, uid model.UID) error { return nil }
func (m *memPeers) Clear(ctx context.Context) error                      { m.byUID = map[model.UID][]model.UID{}; return nil }

type memLocations struct {
	forResult  map[model.UID][]model.UserLocation
	usersAtInt map[model.CoarseLocation][]model.UID
	added      []model.UserLocation
}

func (m *memLocations) Add(ctx context.Context, loc model.UserLocation) error {
	m.added = append(m.added, loc)
	return nil
}
func (m *memLocations) AddBatch(ctx context.Context, b []model.UserLocation) error {
	m.added = append(m.added, b...)
	return nil
}
func (m *memLocations) For(ctx context.Context, uid model.UID, s, e time.Time) ([]model.UserLocation, error) {
	return m.forResult[uid], nil
}
func (m *memLocations) UsersAt(ctx context.Context, loc model.CoarseLocation, instant time.Time) ([]model.UID, error) {
	return m.usersAtInt[loc], nil
}
func (m *memLocations) UsersAtInterval(ctx context.Context, loc model.CoarseLocation, s, e time.Time) ([]model.UID, error) {
	return m.usersAtInt[loc], nil
}
func (m *memLocations) DeleteAllFor(ctx context.Context, uid model.UID) error { return nil }
func (m *memLocations) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
func (m *memLocations) Clear(ctx context.Context) error { return nil }
func (m *memLocations) Flush(ctx context.Context) error { return nil }

type memObservations struct{ added []model.Observation }

func (m *memObservations) Add(ctx context.Context, obs model.Observation) error {
	m.added = append(m.added, obs)
	return nil
}
func (m *memObservations) AddBatch(ctx context.Context, batch []model.Observation) error {
	m.added = append(m.added, batch...)
	return nil
}
func (m *memObservations) Delete(ctx context.Context, observer model.UID, aid model.AID, ts time.Time) error {
	return nil
}
func (m *memObservations) ByObserver(ctx context.Context, observer model.UID) ([]model.Observation, error) {
	return m.added, nil
}
func (m *memObservations) DeleteAllFor(ctx context.Context, uid model.UID) error { return nil }
func (m *memObservations) Clear(ctx context.Context) error                      { return nil }

type memStore struct {
	users *memUsers
	keys  *memKeys
	peers *memPeers
	locs  *memLocations
	obs   *memObservations
}

var _ repository.Store = (*memStore)(nil)

func (s *memStore) Users() repository.UserRepository               { return s.users }
func (s *memStore) Keys() repository.KeyRepository                 { return s.keys }
func (s *memStore) Peers() repository.PeerRepository               { return s.peers }
func (s *memStore) Observations() repository.ObservationRepository { return s.obs }
func (s *memStore) Locations() repository.LocationRepository       { return s.locs }
func (s *memStore) DeleteUser(ctx context.Context, uid model.UID) error {
	delete(s.users.byUID, uid)
	delete(s.keys.byUID, uid)
	return nil
}
func (s *memStore) Clear(ctx context.Context) error  { return nil }
func (s *memStore) Close(ctx context.Context) error  { return nil }

func newTestMux(t *testing.T) (http.Handler, *memStore, *keyregistry.Registry) {
	t.Helper()
	store := &memStore{
		users: &memUsers{byUID: make(map[model.UID]model.User)},
		keys:  &memKeys{byUID: make(map[model.UID][]byte)},
		peers: &memPeers{byUID: make(map[model.UID][]model.UID)},
		locs:  &memLocations{forResult: map[model.UID][]model.UserLocation{}, usersAtInt: map[model.CoarseLocation][]model.UID{}},
		obs:   &memObservations{},
	}
	vault := keyvault.New(keyvault.DeriveMasterKEK([]byte("m"), []byte("s")))
	keys := keyregistry.New(store.keys, vault)
	res := resolver.New(aidcodec.New(), keys, store.peers, store.locs, store.obs, nil)
	svc := ingest.New(store, keys, res, nil)
	return NewMux(svc, nil), store, keys
}

func TestRegisterUser_HTTP(t *testing.T) {
	mux, _, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/users", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp registerUserResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.UID, model.UIDLen*2)
	require.Len(t, resp.Key, model.KeyLen*2)
}

func TestAddPeer_HTTP(t *testing.T) {
	mux, store, _ := newTestMux(t)

	a := uidHex(model.UID{1})
	b := uidHex(model.UID{2})
	body, _ := json.Marshal(peerRequest{A: a, B: b})

	req := httptest.NewRequest(http.MethodPost, "/v1/peers", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, store.peers.byUID[model.UID{1}], model.UID{2})
}

func TestPruneLocations_HTTP(t *testing.T) {
	mux, store, _ := newTestMux(t)
	store.locs.added = []model.UserLocation{
		{UID: model.UID{1}, Start: time.Unix(0, 0), End: time.Unix(10, 0)},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/locations/prune?before_unix=100", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int64
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Contains(t, resp, "pruned")
}

func TestPruneLocations_HTTP_MalformedCutoff(t *testing.T) {
	mux, _, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/locations/prune?before_unix=not-a-number", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSubmitObservations_HTTP(t *testing.T) {
	mux, store, keys := newTestMux(t)

	observer := model.UID{1}
	sender := model.UID{2}
	var key model.Key
	key[0] = 42
	require.NoError(t, keys.Put(context.Background(), sender, key))
	store.peers.byUID[observer] = []model.UID{sender}

	codec := aidcodec.New()
	aid, err := codec.Anonymize(sender, key)
	require.NoError(t, err)

	hexAID := func(a model.AID) string {
		const hexDigits = "0123456789abcdef"
		out := make([]byte, 0, len(a)*2)
		for _, b := range a {
			out = append(out, hexDigits[b>>4], hexDigits[b&0x0f])
		}
		return string(out)
	}(aid)

	reqBody := submitObservationsRequest{
		Observer: uidHex(observer),
		Observations: []observationRequest{
			{AID: hexAID, TimeUnix: 100, Lat: 1, Lon: 1},
		},
	}
	body, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/v1/observations", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 1, resp["resolved"])
}
