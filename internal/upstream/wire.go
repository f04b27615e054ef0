package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"livemap/internal/entity"
	"livemap/internal/geo"
)

// wireCursor accepts the cursor in any JSON scalar form the backend uses.
type wireCursor string

func (c *wireCursor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")), bytes.Equal(data, []byte("false")):
		*c = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = wireCursor(s)
	default:
		*c = wireCursor(data)
	}
	return nil
}

// wireIDs accepts a species list as a JSON array or a comma separated string.
type wireIDs []int

func (ids *wireIDs) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*ids = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := parseIDList(s)
		if err != nil {
			return err
		}
		*ids = parsed
		return nil
	}
	var list []int
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*ids = list
	return nil
}

type wireCreature struct {
	EncounterID   *string  `json:"encounter_id"`
	SpawnPointID  string   `json:"spawnpoint_id"`
	PokestopID    string   `json:"pokestop_id"`
	SpeciesID     *int     `json:"pokemon_id"`
	SpeciesName   string   `json:"pokemon_name"`
	Rarity        string   `json:"pokemon_rarity"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	Disappear     *int64   `json:"disappear_time"`
	LureExpires   *int64   `json:"lure_expiration"`
	Attack        *int     `json:"individual_attack"`
	Defense       *int     `json:"individual_defense"`
	Stamina       *int     `json:"individual_stamina"`
	CP            *int     `json:"cp"`
	Level         *float64 `json:"pokemon_level"`
	Move1         *int     `json:"move_1"`
	Move2         *int     `json:"move_2"`
	RatingAttack  *string  `json:"rating_attack"`
	RatingDefense *string  `json:"rating_defense"`
	CatchProb1    *float64 `json:"catch_prob_1"`
	CatchProb2    *float64 `json:"catch_prob_2"`
	CatchProb3    *float64 `json:"catch_prob_3"`
	PreviousID    *int     `json:"previous_id"`
	Gender        *int     `json:"gender"`
	Height        *float64 `json:"height"`
	Weight        *float64 `json:"weight"`
	WorkerLevel   *int     `json:"worker_level"`
	Form          *int     `json:"form"`
}

type wirePOI struct {
	ID           *string  `json:"pokestop_id"`
	Name         string   `json:"name"`
	ImageURL     string   `json:"image_url"`
	Sponsor      string   `json:"sponsor"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	LureExpires  *int64   `json:"lure_expiration"`
	LastModified int64    `json:"last_modified"`
	LastUpdated  int64    `json:"last_updated"`
	LastScanned  int64    `json:"last_scanned"`
}

type wireOccupant struct {
	SpeciesID    int    `json:"pokemon_id"`
	CP           int    `json:"pokemon_cp"`
	Attack       *int   `json:"iv_attack"`
	Defense      *int   `json:"iv_defense"`
	Stamina      *int   `json:"iv_stamina"`
	TrainerName  string `json:"trainer_name"`
	TrainerLevel int    `json:"trainer_level"`
}

type wireControl struct {
	ID           *string        `json:"gym_id"`
	Name         string         `json:"name"`
	Latitude     *float64       `json:"latitude"`
	Longitude    *float64       `json:"longitude"`
	TeamID       int            `json:"team_id"`
	Points       int            `json:"gym_points"`
	Occupants    []wireOccupant `json:"pokemon"`
	LastScanned  int64          `json:"last_scanned"`
	LastModified int64          `json:"last_modified"`
}

type wireScan struct {
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	LastModified int64    `json:"last_modified"`
}

type wireSpawn struct {
	ID        *string  `json:"id"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Appear    int      `json:"appear_time"`
	Disappear int      `json:"disappear_time"`
	Kind      string   `json:"kind"`
	Missed    int      `json:"missed_count"`
}

type wireZone struct {
	Name        string       `json:"name"`
	Coordinates []geo.LatLng `json:"coordinates"`
	Forbidden   bool         `json:"forbidden"`
}

type wirePollResponse struct {
	Creatures     []json.RawMessage `json:"pokemons"`
	LureCreatures []json.RawMessage `json:"lurepokemons"`
	POIs          []json.RawMessage `json:"pokestops"`
	Controls      []json.RawMessage `json:"gyms"`
	Scans         []json.RawMessage `json:"scanned"`
	SpawnTimers   []json.RawMessage `json:"spawnpoints"`
	Zones         json.RawMessage   `json:"geofences"`

	LastCreatures   *wireCursor `json:"lastpokemon"`
	LastPOIs        *wireCursor `json:"lastpokestops"`
	LastControls    *wireCursor `json:"lastgyms"`
	LastScans       *wireCursor `json:"lastslocs"`
	LastSpawnTimers *wireCursor `json:"lastspawns"`

	SwLat *float64 `json:"oSwLat"`
	SwLng *float64 `json:"oSwLng"`
	NeLat *float64 `json:"oNeLat"`
	NeLng *float64 `json:"oNeLng"`

	Reincluded wireIDs `json:"reids"`
	Timestamp  int64   `json:"timestamp"`
}

func millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func position(lat, lng *float64) (geo.LatLng, error) {
	if lat == nil || lng == nil {
		return geo.LatLng{}, fmt.Errorf("missing coordinates")
	}
	if *lat < -90 || *lat > 90 || *lng < -180 || *lng > 180 {
		return geo.LatLng{}, fmt.Errorf("coordinates out of range: %v,%v", *lat, *lng)
	}
	return geo.LatLng{Lat: *lat, Lng: *lng}, nil
}

func validSubStat(v *int) *int {
	if v == nil || *v < 0 || *v > 15 {
		return nil
	}
	return v
}

func (w wireCreature) toCreature(lured bool) (entity.Creature, error) {
	if w.EncounterID == nil || *w.EncounterID == "" {
		return entity.Creature{}, fmt.Errorf("missing encounter_id")
	}
	if w.SpeciesID == nil {
		return entity.Creature{}, fmt.Errorf("missing pokemon_id")
	}
	pos, err := position(w.Latitude, w.Longitude)
	if err != nil {
		return entity.Creature{}, err
	}

	expires := w.Disappear
	if lured {
		expires = w.LureExpires
	}
	if expires == nil {
		return entity.Creature{}, fmt.Errorf("missing expiry")
	}

	c := entity.Creature{
		EncounterID:     *w.EncounterID,
		SpawnPointID:    w.SpawnPointID,
		SpeciesID:       *w.SpeciesID,
		SpeciesName:     w.SpeciesName,
		Rarity:          w.Rarity,
		Position:        pos,
		Expires:         millis(*expires),
		Attack:          validSubStat(w.Attack),
		Defense:         validSubStat(w.Defense),
		Stamina:         validSubStat(w.Stamina),
		CP:              w.CP,
		Level:           w.Level,
		PreviousSpecies: w.PreviousID,
		Gender:          w.Gender,
		Height:          w.Height,
		Weight:          w.Weight,
		WorkerLevel:     w.WorkerLevel,
		Form:            w.Form,
	}

	switch w.SpawnPointID {
	case "nearby_pokemon":
		c.Origin = entity.OriginNearby
	case "lured_pokemon":
		c.Origin = entity.OriginLured
	}
	if lured {
		c.Origin = entity.OriginLured
		c.SpawnPointID = w.PokestopID
	}
	if w.Move1 != nil && w.Move2 != nil {
		c.Moves = &entity.MovePair{
			Quick:         *w.Move1,
			Charge:        *w.Move2,
			RatingAttack:  w.RatingAttack,
			RatingDefense: w.RatingDefense,
		}
	}
	if w.CatchProb1 != nil && w.CatchProb2 != nil && w.CatchProb3 != nil {
		c.CaptureProbs = &[3]float64{*w.CatchProb1, *w.CatchProb2, *w.CatchProb3}
	}
	return c, nil
}

func (w wirePOI) toPOI() (entity.PointOfInterest, error) {
	if w.ID == nil || *w.ID == "" {
		return entity.PointOfInterest{}, fmt.Errorf("missing pokestop_id")
	}
	pos, err := position(w.Latitude, w.Longitude)
	if err != nil {
		return entity.PointOfInterest{}, err
	}

	p := entity.PointOfInterest{
		ID:           *w.ID,
		Name:         w.Name,
		ImageURL:     w.ImageURL,
		Sponsor:      w.Sponsor,
		Position:     pos,
		LastModified: millis(w.LastModified),
		LastUpdated:  millis(w.LastUpdated),
		LastScanned:  millis(w.LastScanned),
	}
	if w.LureExpires != nil && *w.LureExpires > 0 {
		t := millis(*w.LureExpires)
		p.LureExpires = &t
	}
	return p, nil
}

func (w wireControl) toControl() (entity.ControlStructure, error) {
	if w.ID == nil || *w.ID == "" {
		return entity.ControlStructure{}, fmt.Errorf("missing gym_id")
	}
	pos, err := position(w.Latitude, w.Longitude)
	if err != nil {
		return entity.ControlStructure{}, err
	}
	if w.TeamID < int(entity.FactionNone) || w.TeamID > int(entity.FactionYellow) {
		return entity.ControlStructure{}, fmt.Errorf("unknown team_id %d", w.TeamID)
	}

	g := entity.ControlStructure{
		ID:           *w.ID,
		Name:         w.Name,
		Position:     pos,
		Faction:      entity.Faction(w.TeamID),
		Points:       w.Points,
		LastScanned:  millis(w.LastScanned),
		LastModified: millis(w.LastModified),
	}
	for _, o := range w.Occupants {
		g.Occupants = append(g.Occupants, entity.Occupant{
			SpeciesID:  o.SpeciesID,
			CP:         o.CP,
			Attack:     validSubStat(o.Attack),
			Defense:    validSubStat(o.Defense),
			Stamina:    validSubStat(o.Stamina),
			OwnerName:  o.TrainerName,
			OwnerLevel: o.TrainerLevel,
		})
	}
	return g, nil
}

func (w wireScan) toScan() (entity.ScanSample, error) {
	pos, err := position(w.Latitude, w.Longitude)
	if err != nil {
		return entity.ScanSample{}, err
	}
	return entity.ScanSample{Position: pos, LastModified: millis(w.LastModified)}, nil
}

func (w wireSpawn) toSpawn() (entity.SpawnTimer, error) {
	if w.ID == nil || *w.ID == "" {
		return entity.SpawnTimer{}, fmt.Errorf("missing id")
	}
	pos, err := position(w.Latitude, w.Longitude)
	if err != nil {
		return entity.SpawnTimer{}, err
	}
	return entity.SpawnTimer{
		ID:              *w.ID,
		Position:        pos,
		AppearOffset:    ((w.Appear % 3600) + 3600) % 3600,
		DisappearOffset: ((w.Disappear % 3600) + 3600) % 3600,
		Uncertain:       w.Kind != "" && w.Kind != "hhhs",
		Missed:          w.Missed,
	}, nil
}

func (w wireZone) toZone() (entity.ExclusionZone, error) {
	if w.Name == "" {
		return entity.ExclusionZone{}, fmt.Errorf("missing name")
	}
	if len(w.Coordinates) < 3 {
		return entity.ExclusionZone{}, fmt.Errorf("polygon %q has %d vertices", w.Name, len(w.Coordinates))
	}
	return entity.ExclusionZone{
		Name:      w.Name,
		Vertices:  w.Coordinates,
		Forbidden: w.Forbidden,
	}, nil
}

// decodeZones accepts the zones either as an array or as an object keyed
// by an arbitrary index, which is how the backend serialises them.
func decodeZones(raw json.RawMessage) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		err := json.Unmarshal(raw, &list)
		return list, err
	}

	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return nil, err
	}
	keys := make([]int, 0, len(keyed))
	byIndex := make(map[int]json.RawMessage, len(keyed))
	var named []string
	for k, v := range keyed {
		if i, err := strconv.Atoi(k); err == nil {
			keys = append(keys, i)
			byIndex[i] = v
		} else {
			named = append(named, k)
		}
	}
	slices.Sort(keys)
	slices.Sort(named)
	list := make([]json.RawMessage, 0, len(keyed))
	for _, k := range keys {
		list = append(list, byIndex[k])
	}
	for _, k := range named {
		list = append(list, keyed[k])
	}
	return list, nil
}
