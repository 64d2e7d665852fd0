package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"hearthrealm/internal/auth"
	"hearthrealm/internal/game"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response decoded from the server envelope.
type APIError struct {
	Status  int
	Message string
	Errors  map[string][]string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if len(e.Errors) == 0 {
		return msg
	}
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Errors[k], ", "))
	}
	return msg + " (" + strings.Join(parts, "; ") + ")"
}

// IsAPIError reports whether err came back from the server rather than
// from the network.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// Reply carries the envelope message alongside the decoded data.
type Reply[T any] struct {
	Message string
	Data    T
}

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
}

func call[T any](ctx context.Context, c *Client, method, path, accessToken string, in any, idem string) (Reply[T], error) {
	var out Reply[T]
	env, err := c.jsonRequest(ctx, method, path, accessToken, in, idem)
	if err != nil {
		return out, err
	}
	out.Message = env.Message
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out.Data); err != nil {
		return out, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

func (c *Client) Signup(ctx context.Context, email, password, username string) (Reply[auth.Session], error) {
	return call[auth.Session](ctx, c, http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"email":    email,
		"password": password,
		"username": username,
	}, "")
}

func (c *Client) Login(ctx context.Context, email, password string) (Reply[auth.Session], error) {
	return call[auth.Session](ctx, c, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, "")
}

func (c *Client) Me(ctx context.Context, accessToken string) (Reply[game.PlayerView], error) {
	return call[game.PlayerView](ctx, c, http.MethodGet, "/v1/me", accessToken, nil, "")
}

func (c *Client) World(ctx context.Context, accessToken string) (Reply[game.WorldView], error) {
	return call[game.WorldView](ctx, c, http.MethodGet, "/v1/world", accessToken, nil, "")
}

func (c *Client) Calendar(ctx context.Context, accessToken string) (Reply[game.Calendar], error) {
	return call[game.Calendar](ctx, c, http.MethodGet, "/v1/calendar", accessToken, nil, "")
}

func (c *Client) Travel(ctx context.Context, accessToken, destination string) (Reply[game.TravelResult], error) {
	return call[game.TravelResult](ctx, c, http.MethodPost, "/v1/travel", accessToken, map[string]any{
		"destination": destination,
	}, "")
}

func (c *Client) Equip(ctx context.Context, accessToken, item string) (Reply[game.PlayerView], error) {
	return call[game.PlayerView](ctx, c, http.MethodPost, "/v1/inventory/equip", accessToken, map[string]any{"item": item}, "")
}

func (c *Client) Unequip(ctx context.Context, accessToken string) (Reply[game.PlayerView], error) {
	return call[game.PlayerView](ctx, c, http.MethodPost, "/v1/inventory/unequip", accessToken, nil, "")
}

func (c *Client) Eat(ctx context.Context, accessToken, item string) (Reply[game.PlayerView], error) {
	return call[game.PlayerView](ctx, c, http.MethodPost, "/v1/inventory/eat", accessToken, map[string]any{"item": item}, "")
}

func (c *Client) QueueStatus(ctx context.Context, accessToken string) (Reply[game.QueueView], error) {
	return call[game.QueueView](ctx, c, http.MethodGet, "/v1/action-queue", accessToken, nil, "")
}

func (c *Client) StartQueue(ctx context.Context, accessToken, action string, reps int) (Reply[game.QueueView], error) {
	return call[game.QueueView](ctx, c, http.MethodPost, "/v1/action-queue/start", accessToken, map[string]any{
		"action":      action,
		"repetitions": reps,
	}, "")
}

func (c *Client) CancelQueue(ctx context.Context, accessToken string) (Reply[game.QueueView], error) {
	return call[game.QueueView](ctx, c, http.MethodPost, "/v1/action-queue/cancel", accessToken, nil, "")
}

func (c *Client) StartCombat(ctx context.Context, accessToken, monster string) (Reply[game.CombatView], error) {
	return call[game.CombatView](ctx, c, http.MethodPost, "/v1/combat/start", accessToken, map[string]any{"monster": monster}, "")
}

func (c *Client) Attack(ctx context.Context, accessToken string) (Reply[game.AttackResult], error) {
	return call[game.AttackResult](ctx, c, http.MethodPost, "/v1/combat/attack", accessToken, nil, "")
}

func (c *Client) Flee(ctx context.Context, accessToken string) (Reply[game.CombatView], error) {
	return call[game.CombatView](ctx, c, http.MethodPost, "/v1/combat/flee", accessToken, nil, "")
}

type marketRows struct {
	Rows []game.MarketRow `json:"rows"`
}

func (c *Client) Market(ctx context.Context, accessToken string) (Reply[[]game.MarketRow], error) {
	r, err := call[marketRows](ctx, c, http.MethodGet, "/v1/market", accessToken, nil, "")
	return Reply[[]game.MarketRow]{Message: r.Message, Data: r.Data.Rows}, err
}

// Trade posts a market buy or sell. side is "buy" or "sell".
func (c *Client) Trade(ctx context.Context, accessToken, side, item string, qty int64, idem string) (Reply[game.TradeResult], error) {
	return call[game.TradeResult](ctx, c, http.MethodPost, "/v1/market/"+url.PathEscape(side), accessToken, map[string]any{
		"item":     item,
		"quantity": qty,
	}, idem)
}

func (c *Client) Dice(ctx context.Context, accessToken string, stake int64, idem string) (Reply[game.DiceOutcome], error) {
	return call[game.DiceOutcome](ctx, c, http.MethodPost, "/v1/minigames/dice", accessToken, map[string]any{"stake": stake}, idem)
}

func (c *Client) House(ctx context.Context, accessToken string) (Reply[game.HouseView], error) {
	return call[game.HouseView](ctx, c, http.MethodGet, "/v1/house", accessToken, nil, "")
}

func (c *Client) BuyHouse(ctx context.Context, accessToken, tier string) (Reply[game.HouseView], error) {
	return call[game.HouseView](ctx, c, http.MethodPost, "/v1/house", accessToken, map[string]any{"tier": tier}, "")
}

func (c *Client) AddRoom(ctx context.Context, accessToken, room string) (Reply[game.HouseView], error) {
	return call[game.HouseView](ctx, c, http.MethodPost, "/v1/house/rooms", accessToken, map[string]any{"room": room}, "")
}

func (c *Client) AddFurniture(ctx context.Context, accessToken string, roomID int64, furniture string) (Reply[game.HouseView], error) {
	return call[game.HouseView](ctx, c, http.MethodPost, "/v1/house/furniture", accessToken, map[string]any{
		"room_id":   roomID,
		"furniture": furniture,
	}, "")
}

func (c *Client) RepairHouse(ctx context.Context, accessToken string) (Reply[game.HouseView], error) {
	return call[game.HouseView](ctx, c, http.MethodPost, "/v1/house/repair", accessToken, nil, "")
}

func (c *Client) Plant(ctx context.Context, accessToken, crop string) (Reply[game.HouseView], error) {
	return call[game.HouseView](ctx, c, http.MethodPost, "/v1/house/garden/plant", accessToken, map[string]any{"crop": crop}, "")
}

func (c *Client) Harvest(ctx context.Context, accessToken string, plotID int64) (Reply[game.HarvestResult], error) {
	return call[game.HarvestResult](ctx, c, http.MethodPost, "/v1/house/garden/harvest", accessToken, map[string]any{"plot_id": plotID}, "")
}

func (c *Client) Hire(ctx context.Context, accessToken, servantType string) (Reply[game.HouseView], error) {
	return call[game.HouseView](ctx, c, http.MethodPost, "/v1/house/servants", accessToken, map[string]any{"type": servantType}, "")
}

func (c *Client) Dismiss(ctx context.Context, accessToken string, servantID int64) (Reply[game.HouseView], error) {
	return call[game.HouseView](ctx, c, http.MethodDelete, fmt.Sprintf("/v1/house/servants/%d", servantID), accessToken, nil, "")
}

func (c *Client) CreateReligion(ctx context.Context, accessToken, name, deity string) (Reply[game.ReligionView], error) {
	return call[game.ReligionView](ctx, c, http.MethodPost, "/v1/religions", accessToken, map[string]any{
		"name":  name,
		"deity": deity,
	}, "")
}

func (c *Client) Religion(ctx context.Context, accessToken string, religionID int64) (Reply[game.ReligionView], error) {
	return call[game.ReligionView](ctx, c, http.MethodGet, fmt.Sprintf("/v1/religions/%d", religionID), accessToken, nil, "")
}

func (c *Client) MyReligion(ctx context.Context, accessToken string) (Reply[game.ReligionView], error) {
	return call[game.ReligionView](ctx, c, http.MethodGet, "/v1/religion", accessToken, nil, "")
}

func (c *Client) JoinReligion(ctx context.Context, accessToken string, religionID int64) (Reply[game.ReligionView], error) {
	return call[game.ReligionView](ctx, c, http.MethodPost, fmt.Sprintf("/v1/religions/%d/join", religionID), accessToken, nil, "")
}

func (c *Client) LeaveReligion(ctx context.Context, accessToken string) (Reply[map[string]bool], error) {
	return call[map[string]bool](ctx, c, http.MethodPost, "/v1/religion/leave", accessToken, nil, "")
}

func (c *Client) Donate(ctx context.Context, accessToken string, gold int64) (Reply[game.ReligionView], error) {
	return call[game.ReligionView](ctx, c, http.MethodPost, "/v1/religion/donate", accessToken, map[string]any{"gold": gold}, "")
}

func (c *Client) Pray(ctx context.Context, accessToken string) (Reply[game.PrayResult], error) {
	return call[game.PrayResult](ctx, c, http.MethodPost, "/v1/religion/pray", accessToken, nil, "")
}

func (c *Client) BuildHQ(ctx context.Context, accessToken string, upgrade bool) (Reply[game.HQView], error) {
	path := "/v1/religion/hq"
	if upgrade {
		path += "/upgrade"
	}
	return call[game.HQView](ctx, c, http.MethodPost, path, accessToken, nil, "")
}

func (c *Client) Petition(ctx context.Context, accessToken, location, message string) (Reply[game.PetitionView], error) {
	return call[game.PetitionView](ctx, c, http.MethodPost, "/v1/roles/petitions", accessToken, map[string]any{
		"location": location,
		"message":  message,
	}, "")
}

// DecidePetition posts approve, reject or withdraw for a petition.
func (c *Client) DecidePetition(ctx context.Context, accessToken string, petitionID int64, decision string) (Reply[game.PetitionView], error) {
	path := fmt.Sprintf("/v1/roles/petitions/%d/%s", petitionID, url.PathEscape(decision))
	return call[game.PetitionView](ctx, c, http.MethodPost, path, accessToken, nil, "")
}

func (c *Client) Resign(ctx context.Context, accessToken string) (Reply[struct{}], error) {
	return call[struct{}](ctx, c, http.MethodPost, "/v1/roles/resign", accessToken, nil, "")
}

func (c *Client) SetTaxRate(ctx context.Context, accessToken string, rate int) (Reply[game.RoleView], error) {
	return call[game.RoleView](ctx, c, http.MethodPost, "/v1/roles/tax-rate", accessToken, map[string]any{"rate": rate}, "")
}

// Do replays a raw request, used by the offline outbox.
func (c *Client) Do(ctx context.Context, method, path, accessToken string, body map[string]any, idem string) (string, error) {
	var in any
	if body != nil {
		in = body
	}
	env, err := c.jsonRequest(ctx, method, path, accessToken, in, idem)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// EventsURL is the websocket address of the event feed.
func (c *Client) EventsURL(accessToken string, locationID int64) (string, error) {
	u, err := url.Parse(c.BaseURL + "/v1/events")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("access_token", accessToken)
	if locationID > 0 {
		q.Set("location", fmt.Sprint(locationID))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, idem string) (envelope, error) {
	var env envelope
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return env, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return env, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return env, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return env, err
	}
	if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil && resp.StatusCode < 300 {
		return env, fmt.Errorf("decode response: %w", jsonErr)
	}
	if resp.StatusCode >= 300 || !env.Success {
		apiErr := &APIError{Status: resp.StatusCode, Message: env.Message, Errors: env.Errors}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return env, apiErr
	}
	return env, nil
}
