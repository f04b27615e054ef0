package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"livemap/internal/cursor"
	"livemap/internal/entity"
	"livemap/internal/geo"
	"livemap/internal/shared/errors"
)

const maxResponseBytes = 16 << 20

type Options struct {
	BaseURL       string
	Timeout       time.Duration
	ScoutCooldown time.Duration
	// HTTPClient carries the authentication transport; see NewHTTPClient.
	HTTPClient *http.Client
	Cache      ScoutCache
}

type Client struct {
	base   *url.URL
	http   *http.Client
	scouts *rate.Limiter
	cache  ScoutCache
	logger *slog.Logger
}

func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url %q: %w", opts.BaseURL, err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.Timeout > 0 {
		c := *httpClient
		c.Timeout = opts.Timeout
		httpClient = &c
	}

	limit := rate.Inf
	if opts.ScoutCooldown > 0 {
		limit = rate.Every(opts.ScoutCooldown)
	}

	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryCache()
	}

	return &Client{
		base:   base,
		http:   httpClient,
		scouts: rate.NewLimiter(limit, 1),
		cache:  cache,
		logger: slog.With("component", "upstream"),
	}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.base.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), nil)
	if err != nil {
		return errors.WrapInternal("build "+path+" request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.WrapExternal(path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.WrapExternal(path, err)
	}
	if resp.StatusCode >= 300 {
		return errors.External(fmt.Sprintf("%s returned %s", path, resp.Status))
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.WrapExternal("decode "+path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func parseIDList(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid species id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func boundsQuery(q url.Values, prefix string, b geo.Bounds) {
	key := func(s string) string {
		if prefix == "" {
			return strings.ToLower(s[:1]) + s[1:]
		}
		return prefix + s
	}
	q.Set(key("SwLat"), formatFloat(b.SW.Lat))
	q.Set(key("SwLng"), formatFloat(b.SW.Lng))
	q.Set(key("NeLat"), formatFloat(b.NE.Lat))
	q.Set(key("NeLng"), formatFloat(b.NE.Lng))
}

// Encode renders the request with the backend's query names. A reset
// category sends "false" as its cursor.
func (r PollRequest) Encode() url.Values {
	q := url.Values{}
	for _, cat := range entity.Polled {
		p := pollParams[cat]
		cq := r.Categories[cat]
		q.Set(p.enabled, strconv.FormatBool(cq.Enabled))
		if !cq.Enabled {
			continue
		}
		if cq.Reset || cq.Cursor == cursor.Unset {
			q.Set(p.last, "false")
		} else {
			q.Set(p.last, string(cq.Cursor))
		}
	}
	q.Set("luredonly", strconv.FormatBool(r.LuredOnly))
	q.Set("geofences", strconv.FormatBool(r.Zones))

	boundsQuery(q, "", r.Bounds)
	if !r.Previous.IsEmpty() {
		boundsQuery(q, "o", r.Previous)
	}
	if len(r.Excluded) > 0 {
		q.Set("eids", formatIDs(r.Excluded))
	}
	if len(r.Reincluded) > 0 {
		q.Set("reids", formatIDs(r.Reincluded))
	}
	if r.Timestamp > 0 {
		q.Set("timestamp", strconv.FormatInt(r.Timestamp, 10))
	}
	return q
}

// Poll fetches one incremental batch. Records that fail validation are
// dropped and counted; the rest of the batch is kept.
func (c *Client) Poll(ctx context.Context, req PollRequest) (PollResponse, error) {
	logger := c.logger.With("operation", "Poll")

	var wire wirePollResponse
	if err := c.do(ctx, http.MethodGet, "raw_data", req.Encode(), &wire); err != nil {
		return PollResponse{}, err
	}

	resp := PollResponse{
		Cursors:    make(map[entity.Category]cursor.Cursor),
		Reincluded: wire.Reincluded,
		Timestamp:  wire.Timestamp,
	}
	drop := func(kind string, err error) {
		resp.Dropped++
		logger.Warn("Dropping malformed record", "kind", kind, "error", err)
	}

	resp.Creatures = decodeList(wire.Creatures, "creature", drop, func(w wireCreature) (entity.Creature, error) { return w.toCreature(false) })
	resp.LureCreatures = decodeList(wire.LureCreatures, "lure creature", drop, func(w wireCreature) (entity.Creature, error) { return w.toCreature(true) })
	resp.POIs = decodeList(wire.POIs, "poi", drop, wirePOI.toPOI)
	resp.Controls = decodeList(wire.Controls, "control", drop, wireControl.toControl)
	resp.Scans = decodeList(wire.Scans, "scan", drop, wireScan.toScan)
	resp.SpawnTimers = decodeList(wire.SpawnTimers, "spawn timer", drop, wireSpawn.toSpawn)

	zones, err := decodeZones(wire.Zones)
	if err != nil {
		drop("zones", err)
	}
	resp.Zones = decodeList(zones, "zone", drop, wireZone.toZone)

	for cat, last := range map[entity.Category]*wireCursor{
		entity.CategoryCreatures:   wire.LastCreatures,
		entity.CategoryPOIs:        wire.LastPOIs,
		entity.CategoryControls:    wire.LastControls,
		entity.CategoryScans:       wire.LastScans,
		entity.CategorySpawnTimers: wire.LastSpawnTimers,
	} {
		if last != nil && *last != "" {
			resp.Cursors[cat] = cursor.Cursor(*last)
		}
	}

	if wire.SwLat != nil && wire.SwLng != nil && wire.NeLat != nil && wire.NeLng != nil {
		resp.Covered = geo.NewBounds(
			geo.LatLng{Lat: *wire.SwLat, Lng: *wire.SwLng},
			geo.LatLng{Lat: *wire.NeLat, Lng: *wire.NeLng},
		)
	} else {
		resp.Covered = req.Bounds
	}

	logger.Debug("Poll completed",
		"creatures", len(resp.Creatures),
		"pois", len(resp.POIs),
		"controls", len(resp.Controls),
		"scans", len(resp.Scans),
		"spawn_timers", len(resp.SpawnTimers),
		"dropped", resp.Dropped)
	return resp, nil
}

func decodeList[W, T any](raw []json.RawMessage, kind string, drop func(string, error), convert func(W) (T, error)) []T {
	if len(raw) == 0 {
		return nil
	}
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var w W
		if err := json.Unmarshal(r, &w); err != nil {
			drop(kind, err)
			continue
		}
		v, err := convert(w)
		if err != nil {
			drop(kind, err)
			continue
		}
		out = append(out, v)
	}
	return out
}

type wireScout struct {
	Success       bool     `json:"success"`
	Message       string   `json:"msg"`
	Error         string   `json:"error"`
	Attack        *int     `json:"iv_attack"`
	Defense       *int     `json:"iv_defense"`
	Stamina       *int     `json:"iv_stamina"`
	CP            *int     `json:"cp"`
	Level         *float64 `json:"pokemon_level"`
	Move1         *int     `json:"move_1"`
	Move2         *int     `json:"move_2"`
	RatingAttack  *string  `json:"rating_attack"`
	RatingDefense *string  `json:"rating_defense"`
	CatchProb1    *float64 `json:"catch_prob_1"`
	CatchProb2    *float64 `json:"catch_prob_2"`
	CatchProb3    *float64 `json:"catch_prob_3"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	WorkerLevel   *int     `json:"worker_level"`
	Gender        *int     `json:"gender"`
	Height        *float64 `json:"height"`
	Weight        *float64 `json:"weight"`
}

func (w wireScout) toResult(encounterID string) ScoutResult {
	r := ScoutResult{
		EncounterID: encounterID,
		Attack:      validSubStat(w.Attack),
		Defense:     validSubStat(w.Defense),
		Stamina:     validSubStat(w.Stamina),
		CP:          w.CP,
		Level:       w.Level,
		WorkerLevel: w.WorkerLevel,
		Gender:      w.Gender,
		Height:      w.Height,
		Weight:      w.Weight,
	}
	if w.Move1 != nil && w.Move2 != nil {
		r.Moves = &entity.MovePair{Quick: *w.Move1, Charge: *w.Move2, RatingAttack: w.RatingAttack, RatingDefense: w.RatingDefense}
	}
	if w.CatchProb1 != nil && w.CatchProb2 != nil && w.CatchProb3 != nil {
		r.CaptureProbs = &[3]float64{*w.CatchProb1, *w.CatchProb2, *w.CatchProb3}
	}
	if pos, err := position(w.Latitude, w.Longitude); err == nil {
		r.Position = &pos
	}
	return r
}

// Scout fetches the details of one encounter. Results are cached until
// expires; uncached requests respect the scout cooldown.
func (c *Client) Scout(ctx context.Context, encounterID string, expires time.Time) (ScoutResult, error) {
	logger := c.logger.With("operation", "Scout", "encounter_id", encounterID)

	if cached, ok, err := c.cache.Get(ctx, encounterID); err != nil {
		logger.Warn("Scout cache read failed", "error", err)
	} else if ok {
		logger.Debug("Scout result served from cache")
		return cached, nil
	}

	if err := c.scouts.Wait(ctx); err != nil {
		return ScoutResult{}, errors.WrapUnavailable("scout cooldown", err)
	}

	var wire wireScout
	q := url.Values{"encounter_id": {encounterID}}
	if err := c.do(ctx, http.MethodGet, "scout", q, &wire); err != nil {
		return ScoutResult{}, err
	}
	if !wire.Success {
		msg := wire.Error
		if msg == "" {
			msg = wire.Message
		}
		if msg == "" {
			msg = "scout failed"
		}
		return ScoutResult{}, errors.External(msg)
	}

	result := wire.toResult(encounterID)
	if ttl := time.Until(expires); ttl > 0 {
		if err := c.cache.Set(ctx, result, ttl); err != nil {
			logger.Warn("Scout cache write failed", "error", err)
		}
	}
	logger.Info("Scout completed", "cp", result.CP)
	return result, nil
}

// ChangeLocation moves the backend search origin.
func (c *Client) ChangeLocation(ctx context.Context, p geo.LatLng) error {
	q := url.Values{
		"lat": {formatFloat(p.Lat)},
		"lon": {formatFloat(p.Lng)},
	}
	if err := c.do(ctx, http.MethodPost, "next_loc", q, nil); err != nil {
		return err
	}
	c.logger.Info("Search location changed", "operation", "ChangeLocation", "position", p.String())
	return nil
}

func (c *Client) SetSearch(ctx context.Context, on bool) error {
	action := "off"
	if on {
		action = "on"
	}
	return c.do(ctx, http.MethodPost, "search_control", url.Values{"action": {action}}, nil)
}

func (c *Client) SearchStatus(ctx context.Context) (SearchStatus, error) {
	var status SearchStatus
	err := c.do(ctx, http.MethodGet, "search_control", nil, &status)
	return status, err
}

// PointHistory returns past sightings per species at one spawn point.
func (c *Client) PointHistory(ctx context.Context, spawnPointID string) ([]SpeciesCount, error) {
	var wire struct {
		History []SpeciesCount `json:"spawn_history"`
	}
	q := url.Values{"spawnpoint_id": {spawnPointID}}
	if err := c.do(ctx, http.MethodGet, "spawn_history", q, &wire); err != nil {
		return nil, err
	}
	return wire.History, nil
}

// PointSummary is the history of one spawn point inside an area.
type PointSummary struct {
	SpawnPointID string         `json:"spawnpoint_id"`
	Position     geo.LatLng     `json:"position"`
	Species      []SpeciesCount `json:"species"`
}

// AreaHistory lists the spawn points inside b with their history.
func (c *Client) AreaHistory(ctx context.Context, b geo.Bounds) ([]PointSummary, error) {
	var wire struct {
		Points []struct {
			SpawnPointID string   `json:"spawnpoint_id"`
			Latitude     *float64 `json:"latitude"`
			Longitude    *float64 `json:"longitude"`
		} `json:"points"`
	}
	q := url.Values{}
	boundsQuery(q, "", b)
	if err := c.do(ctx, http.MethodGet, "pointhistory", q, &wire); err != nil {
		return nil, err
	}

	out := make([]PointSummary, 0, len(wire.Points))
	for _, p := range wire.Points {
		pos, err := position(p.Latitude, p.Longitude)
		if err != nil || p.SpawnPointID == "" {
			continue
		}
		species, err := c.PointHistory(ctx, p.SpawnPointID)
		if err != nil {
			return nil, err
		}
		out = append(out, PointSummary{SpawnPointID: p.SpawnPointID, Position: pos, Species: species})
	}
	return out, nil
}
