package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"livemap/internal/cursor"
	"livemap/internal/entity"
	"livemap/internal/geo"
	"livemap/internal/shared/errors"
)

var testBounds = geo.NewBounds(geo.LatLng{Lat: 40, Lng: -74}, geo.LatLng{Lat: 40.01, Lng: -73.99})

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestPollRequestEncode(t *testing.T) {
	req := PollRequest{
		Categories: map[entity.Category]CategoryQuery{
			entity.CategoryCreatures: {Enabled: true, Cursor: "1700000000"},
			entity.CategoryPOIs:      {Enabled: true, Cursor: "abc", Reset: true},
			entity.CategoryControls:  {Enabled: false},
		},
		Bounds:     testBounds,
		Excluded:   []int{16, 19},
		Reincluded: []int{41},
	}
	q := req.Encode()

	tests := []struct {
		key  string
		want string
	}{
		{"pokemon", "true"},
		{"lastpokemon", "1700000000"},
		{"pokestops", "true"},
		{"lastpokestops", "false"},
		{"gyms", "false"},
		{"lastgyms", ""},
		{"swLat", "40"},
		{"neLng", "-73.99"},
		{"eids", "16,19"},
		{"reids", "41"},
		{"oSwLat", ""},
	}
	for _, tt := range tests {
		if got := q.Get(tt.key); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.key, got, tt.want)
		}
	}

	req.Previous = testBounds
	if got := req.Encode().Get("oNeLat"); got != "40.01" {
		t.Errorf("oNeLat = %q", got)
	}
}

const pollBody = `{
	"pokemons": [
		{"encounter_id": "e1", "spawnpoint_id": "sp1", "pokemon_id": 25, "pokemon_name": "Pikachu",
		 "latitude": 40.005, "longitude": -73.995, "disappear_time": 1772366460000,
		 "individual_attack": 15, "individual_defense": 14, "individual_stamina": 13,
		 "move_1": 221, "move_2": 79},
		{"encounter_id": "e2", "spawnpoint_id": "nearby_pokemon", "pokemon_id": 16,
		 "latitude": 40.006, "longitude": -73.996, "disappear_time": 1772366460000,
		 "individual_attack": 99},
		{"pokemon_id": 1, "latitude": 40, "longitude": -74, "disappear_time": 1}
	],
	"pokestops": [
		{"pokestop_id": "s1", "latitude": 40.001, "longitude": -73.999, "lure_expiration": 1772366400000},
		{"pokestop_id": "s2", "latitude": 95, "longitude": 0}
	],
	"gyms": [
		{"gym_id": "g1", "latitude": 40.002, "longitude": -73.998, "team_id": 2, "gym_points": 9000,
		 "pokemon": [{"pokemon_id": 149, "pokemon_cp": 3000, "trainer_name": "ash", "trainer_level": 30}]}
	],
	"scanned": [{"latitude": 40.003, "longitude": -73.997, "last_modified": 1772366000000}],
	"spawnpoints": [{"id": "sp1", "latitude": 40.004, "longitude": -73.996, "appear_time": 3500, "disappear_time": 600, "kind": "hhhs"}],
	"geofences": {"0": {"name": "park", "forbidden": true, "coordinates": [{"lat": 40, "lng": -74}, {"lat": 40.01, "lng": -74}, {"lat": 40.01, "lng": -73.99}]}},
	"lastpokemon": "1772366000",
	"lastpokestops": true,
	"lastgyms": 17,
	"lastslocs": false,
	"oSwLat": 39.9, "oSwLng": -74.1, "oNeLat": 40.1, "oNeLng": -73.9,
	"reids": "41, 129",
	"timestamp": 1772366000000
}`

func TestPollDecodesAndValidates(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(pollBody))
	})

	resp, err := c.Poll(context.Background(), PollRequest{Bounds: testBounds})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if gotPath != "/raw_data" {
		t.Errorf("path = %q", gotPath)
	}

	if len(resp.Creatures) != 2 || len(resp.POIs) != 1 || resp.Dropped != 2 {
		t.Fatalf("creatures=%d pois=%d dropped=%d", len(resp.Creatures), len(resp.POIs), resp.Dropped)
	}

	pika := resp.Creatures[0]
	if q := *pika.Attack + *pika.Defense + *pika.Stamina; q != 42 {
		t.Errorf("sub-stats sum = %d", q)
	}
	if pika.Moves == nil || pika.Moves.Quick != 221 {
		t.Errorf("moves = %+v", pika.Moves)
	}
	if !pika.Expires.Equal(time.UnixMilli(1772366460000)) {
		t.Errorf("expires = %v", pika.Expires)
	}

	nearby := resp.Creatures[1]
	if nearby.Origin != entity.OriginNearby {
		t.Errorf("origin = %q", nearby.Origin)
	}
	if nearby.Attack != nil || nearby.HasSubStats() {
		t.Error("out-of-range sub-stat should be treated as unavailable")
	}

	if resp.POIs[0].LureExpires == nil {
		t.Error("lure expiry not decoded")
	}
	if g := resp.Controls[0]; g.Faction != entity.FactionRed || len(g.Occupants) != 1 {
		t.Errorf("control = %+v", g)
	}
	if len(resp.Zones) != 1 || !resp.Zones[0].Forbidden {
		t.Errorf("zones = %+v", resp.Zones)
	}
	if s := resp.SpawnTimers[0]; s.AppearOffset != 3500 || s.Uncertain {
		t.Errorf("spawn = %+v", s)
	}

	wantCursors := map[entity.Category]cursor.Cursor{
		entity.CategoryCreatures: "1772366000",
		entity.CategoryPOIs:      "true",
		entity.CategoryControls:  "17",
	}
	for cat, want := range wantCursors {
		if got := resp.Cursors[cat]; got != want {
			t.Errorf("cursor %s = %q, want %q", cat, got, want)
		}
	}
	if _, ok := resp.Cursors[entity.CategoryScans]; ok {
		t.Error("false cursor should be absent")
	}
	if resp.Covered.SW.Lat != 39.9 {
		t.Errorf("covered = %+v", resp.Covered)
	}
	if !slices.Equal(resp.Reincluded, []int{41, 129}) {
		t.Errorf("reincluded = %v", resp.Reincluded)
	}
}

func TestPollFailureIsExternal(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.Poll(context.Background(), PollRequest{Bounds: testBounds})
	if !errors.Is(err, errors.ErrorTypeExternal) {
		t.Fatalf("err = %v", err)
	}

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	})
	if _, err := c.Poll(context.Background(), PollRequest{Bounds: testBounds}); !errors.Is(err, errors.ErrorTypeExternal) {
		t.Fatalf("parse failure err = %v", err)
	}
}

func TestScoutCachesResult(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("encounter_id") != "e1" {
			t.Errorf("query = %v", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"success": true, "iv_attack": 10, "iv_defense": 11, "iv_stamina": 12,
			"cp": 812, "pokemon_level": 20, "worker_level": 30, "latitude": 40.1, "longitude": -74.1}`))
	})

	expires := time.Now().Add(10 * time.Minute)
	for range 2 {
		res, err := c.Scout(context.Background(), "e1", expires)
		if err != nil {
			t.Fatalf("Scout: %v", err)
		}
		if res.CP == nil || *res.CP != 812 || res.Position == nil {
			t.Fatalf("result = %+v", res)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("backend called %d times", n)
	}

	base := entity.Creature{EncounterID: "e1", SpeciesID: 25}
	res, _ := c.Scout(context.Background(), "e1", expires)
	updated := res.Apply(base)
	if !updated.HasSubStats() || updated.Position.Lat != 40.1 {
		t.Errorf("applied = %+v", updated)
	}
}

func TestScoutFailureMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"msg": "Failure: Pokemon already despawned."}`))
	})

	_, err := c.Scout(context.Background(), "e1", time.Now().Add(time.Minute))
	if err == nil || !strings.Contains(err.Error(), "despawned") {
		t.Fatalf("err = %v", err)
	}
}

func TestChangeLocationAndSearch(t *testing.T) {
	var got []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"status": true}`))
		}
	})
	ctx := context.Background()

	if err := c.ChangeLocation(ctx, geo.LatLng{Lat: 40.5, Lng: -73.5}); err != nil {
		t.Fatal(err)
	}
	if err := c.SetSearch(ctx, false); err != nil {
		t.Fatal(err)
	}
	status, err := c.SearchStatus(ctx)
	if err != nil || !status.Running {
		t.Fatalf("status = %+v, err = %v", status, err)
	}

	want := []string{
		"POST /next_loc?lat=40.5&lon=-73.5",
		"POST /search_control?action=off",
		"GET /search_control?",
	}
	if !slices.Equal(got, want) {
		t.Errorf("requests = %v", got)
	}
}

func TestAreaHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pointhistory":
			_, _ = w.Write([]byte(`{"points": [{"spawnpoint_id": "sp1", "latitude": 40.001, "longitude": -73.999}]}`))
		case "/spawn_history":
			_, _ = w.Write([]byte(`{"spawn_history": [{"pokemon_id": 16, "pokemon_name": "Pidgey", "count": 7}]}`))
		default:
			http.NotFound(w, r)
		}
	})

	points, err := c.AreaHistory(context.Background(), testBounds)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 1 || points[0].Species[0].Count != 7 {
		t.Errorf("points = %+v", points)
	}
}

func TestBearerTransportSignsRequests(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	hc := NewHTTPClient(context.Background(), AuthConfig{SharedSecret: secret, Subject: "dashboard"})
	c, err := NewClient(Options{BaseURL: srv.URL, HTTPClient: hc})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetSearch(context.Background(), true); err != nil {
		t.Fatal(err)
	}

	raw, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		t.Fatalf("authorization = %q", auth)
	}
	claims := &jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return []byte(secret), nil }); err != nil {
		t.Fatalf("token invalid: %v", err)
	}
	if claims.Subject != "dashboard" {
		t.Errorf("subject = %q", claims.Subject)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Now()
	c.now = func() time.Time { return now }

	_ = c.Set(context.Background(), ScoutResult{EncounterID: "e1"}, time.Minute)
	if _, ok, _ := c.Get(context.Background(), "e1"); !ok {
		t.Fatal("fresh entry missing")
	}

	now = now.Add(time.Minute)
	if _, ok, _ := c.Get(context.Background(), "e1"); ok {
		t.Error("entry should expire at its ttl")
	}
}

func TestDecodeZonesOrder(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"array", `["a","b"]`, []string{`"a"`, `"b"`}},
		{"numeric keys", `{"10":"c","2":"b","1":"a"}`, []string{`"a"`, `"b"`, `"c"`}},
		{"named keys after numeric", `{"zeta":"z","1":"a","alpha":"x","mid":"m"}`, []string{`"a"`, `"x"`, `"m"`, `"z"`}},
		{"null", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for range 5 {
				list, err := decodeZones([]byte(tt.raw))
				if err != nil {
					t.Fatalf("decodeZones: %v", err)
				}
				got := make([]string, len(list))
				for i, v := range list {
					got[i] = string(v)
				}
				if len(tt.want) == 0 && len(got) == 0 {
					continue
				}
				if !slices.Equal(got, tt.want) {
					t.Fatalf("order = %v, want %v", got, tt.want)
				}
			}
		})
	}
}
