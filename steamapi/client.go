// Package steamapi is the Remote Schema Client (C2): it fetches canonical
// achievement schemas, global unlock rates, per-player progress, and store
// search results from Steam's web API. Generalized from the teacher's
// steamapi/client.go (same http.Client construction, same getJSON helper),
// extended with the global-percentages and store-search endpoints §6 names.
package steamapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/achievement-tracker/agent/config"
	"github.com/achievement-tracker/agent/enginerr"
)

const (
	readTimeout    = 30 * time.Second
	connectTimeout = 10 * time.Second
)

type schemaCacheEntry struct {
	entries   []SchemaEntry
	fetchedAt time.Time
}

type Client struct {
	key    string
	client *http.Client

	schemaMu    sync.Mutex
	schemaCache map[uint32]schemaCacheEntry
}

// New reads STEAM_API_KEY. An empty key is allowed: unauthenticated calls
// (global percentages, store search) still work; authenticated calls return
// enginerr.ErrNotConfigured.
func New() *Client {
	return &Client{
		key: os.Getenv("STEAM_API_KEY"),
		client: &http.Client{
			Timeout: readTimeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
				TLSHandshakeTimeout:   connectTimeout,
				ExpectContinueTimeout: 1 * time.Second,
				IdleConnTimeout:       30 * time.Second,
				MaxIdleConns:          100,
				MaxConnsPerHost:       10,
			},
		},
		schemaCache: make(map[uint32]schemaCacheEntry),
	}
}

// SchemaEntry is one achievement definition as published by the platform
// schema.
type SchemaEntry struct {
	Key         string
	DisplayName string
	Description string
	Icon        string
	IconGray    string
	Hidden      bool
}

// PlayerAch is one player's progress entry for an achievement key.
type PlayerAch struct {
	Key        string
	Unlocked   bool
	UnlockTime *int64
}

// GameHit is one store-search result.
type GameHit struct {
	GameID uint32
	Name   string
	Thumb  string
}

// GetSchema returns the canonical achievement list for a game, serving from
// an in-memory cache while it's within config.SchemaTTL() of its last fetch
// (the same short-lived cache-to-avoid-refetching idea as the teacher's
// service/refresh.go, moved here since onboarding and the probe endpoint can
// both call GetSchema for the same game in quick succession).
func (c *Client) GetSchema(ctx context.Context, gameID uint32) ([]SchemaEntry, error) {
	if cached, ok := c.cachedSchema(gameID); ok {
		return cached, nil
	}
	if c.key == "" {
		return nil, enginerr.Wrap(enginerr.ErrNotConfigured, fmt.Errorf("STEAM_API_KEY not set"))
	}
	u := "https://api.steampowered.com/ISteamUserStats/GetSchemaForGame/v2/"
	q := url.Values{}
	q.Set("key", c.key)
	q.Set("appid", strconv.FormatUint(uint64(gameID), 10))

	var raw schemaForGameResp
	if err := c.getJSON(ctx, u, q, &raw); err != nil {
		return nil, err
	}
	if len(raw.Game.AvailableGameStats.Achievements) == 0 {
		return nil, enginerr.Wrap(enginerr.ErrNotFound, fmt.Errorf("game %d has no schema", gameID))
	}
	out := make([]SchemaEntry, 0, len(raw.Game.AvailableGameStats.Achievements))
	for _, a := range raw.Game.AvailableGameStats.Achievements {
		out = append(out, SchemaEntry{
			Key:         a.Name,
			DisplayName: emptyFallback(a.DisplayName, a.Name),
			Description: a.Description,
			Icon:        a.Icon,
			IconGray:    a.IconGray,
			Hidden:      a.Hidden == 1,
		})
	}
	c.storeSchema(gameID, out)
	return out, nil
}

func (c *Client) cachedSchema(gameID uint32) ([]SchemaEntry, bool) {
	c.schemaMu.Lock()
	defer c.schemaMu.Unlock()
	entry, ok := c.schemaCache[gameID]
	if !ok || time.Since(entry.fetchedAt) >= config.SchemaTTL() {
		return nil, false
	}
	return entry.entries, true
}

func (c *Client) storeSchema(gameID uint32, entries []SchemaEntry) {
	c.schemaMu.Lock()
	c.schemaCache[gameID] = schemaCacheEntry{entries: entries, fetchedAt: time.Now()}
	c.schemaMu.Unlock()
}

// GetGlobalRates returns key -> global unlock percent. Best-effort: any
// failure is returned as an error but callers treat it as non-fatal and
// simply omit enrichment (§4.2).
func (c *Client) GetGlobalRates(ctx context.Context, gameID uint32) (map[string]float64, error) {
	u := "https://api.steampowered.com/ISteamUserStats/GetGlobalAchievementPercentagesForApp/v2/"
	q := url.Values{}
	q.Set("gameid", strconv.FormatUint(uint64(gameID), 10))

	var raw globalPercentagesResp
	if err := c.getJSON(ctx, u, q, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(raw.AchievementPercentages.Achievements))
	for _, a := range raw.AchievementPercentages.Achievements {
		out[a.Name] = a.Percent
	}
	return out, nil
}

// GetPlayerProgress returns per-key unlock state for playerID. Returns
// enginerr.ErrUnavailable (not an error the caller should surface) when the
// profile is private or the game is unowned.
func (c *Client) GetPlayerProgress(ctx context.Context, gameID uint32, playerID string) ([]PlayerAch, error) {
	u := "https://api.steampowered.com/ISteamUserStats/GetPlayerAchievements/v1/"
	q := url.Values{}
	if c.key != "" {
		q.Set("key", c.key)
	}
	q.Set("appid", strconv.FormatUint(uint64(gameID), 10))
	q.Set("steamid", playerID)

	var raw playerAchievementsResp
	if err := c.getJSON(ctx, u, q, &raw); err != nil {
		return nil, err
	}
	if !raw.Playerstats.Success {
		return nil, enginerr.Wrap(enginerr.ErrUnavailable, fmt.Errorf("player progress unavailable for %d/%s", gameID, playerID))
	}
	out := make([]PlayerAch, 0, len(raw.Playerstats.Achievements))
	for _, a := range raw.Playerstats.Achievements {
		pa := PlayerAch{Key: a.APIName, Unlocked: a.Achieved == 1}
		if a.UnlockTime > 0 {
			t := a.UnlockTime
			pa.UnlockTime = &t
		}
		out = append(out, pa)
	}
	return out, nil
}

// SearchGames returns up to 20 game-type results matching query.
func (c *Client) SearchGames(ctx context.Context, query string) ([]GameHit, error) {
	u := "https://store.steampowered.com/api/storesearch/"
	q := url.Values{}
	q.Set("term", query)
	q.Set("l", "english")
	q.Set("cc", "US")

	var raw storeSearchResp
	if err := c.getJSON(ctx, u, q, &raw); err != nil {
		return nil, err
	}
	out := make([]GameHit, 0, len(raw.Items))
	for _, it := range raw.Items {
		if it.Type != "game" {
			continue
		}
		out = append(out, GameHit{GameID: uint32(it.ID), Name: it.Name, Thumb: it.Tiny})
		if len(out) == 20 {
			break
		}
	}
	return out, nil
}

// ------------ wire shapes ------------

type schemaForGameResp struct {
	Game struct {
		AvailableGameStats struct {
			Achievements []struct {
				Name        string `json:"name"`
				DisplayName string `json:"displayName"`
				Description string `json:"description"`
				Icon        string `json:"icon"`
				IconGray    string `json:"icongray"`
				Hidden      int    `json:"hidden"`
			} `json:"achievements"`
		} `json:"availableGameStats"`
	} `json:"game"`
}

type globalPercentagesResp struct {
	AchievementPercentages struct {
		Achievements []struct {
			Name    string  `json:"name"`
			Percent float64 `json:"percent"`
		} `json:"achievements"`
	} `json:"achievementpercentages"`
}

type playerAchievementsResp struct {
	Playerstats struct {
		Success      bool `json:"success"`
		Achievements []struct {
			APIName    string `json:"apiname"`
			Achieved   int    `json:"achieved"`
			UnlockTime int64  `json:"unlocktime"`
		} `json:"achievements"`
	} `json:"playerstats"`
}

type storeSearchResp struct {
	Items []struct {
		ID   int64  `json:"id"`
		Type string `json:"type"`
		Name string `json:"name"`
		Tiny string `json:"tiny_image"`
	} `json:"items"`
}

// ------------ internals ------------

func (c *Client) getJSON(ctx context.Context, base string, q url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return enginerr.Wrap(enginerr.ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return enginerr.Wrap(enginerr.ErrTransport, fmt.Errorf("steam http %d", resp.StatusCode))
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(v); err != nil {
		return enginerr.Wrap(enginerr.ErrTransport, err)
	}
	return nil
}

func emptyFallback(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
