package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hearthrealm/internal/auth"
	"hearthrealm/internal/config"
	"hearthrealm/internal/events"
	"hearthrealm/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type contextKey string

const playerContextKey contextKey = "player"

type PlayerContext struct {
	PlayerID int64
	Username string
}

type Server struct {
	cfg     config.APIConfig
	log     *slog.Logger
	tokens  *auth.Tokens
	game    *game.Service
	hub     *events.Hub
	limiter *playerLimiter
	mux     *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, tokens *auth.Tokens, gameSvc *game.Service, hub *events.Hub) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		log:     logger,
		tokens:  tokens,
		game:    gameSvc,
		hub:     hub,
		limiter: newPlayerLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		mux:     chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeOK(w, http.StatusOK, "ok", map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Post("/auth/signup", s.handleSignup)
			r.Post("/auth/login", s.handleLogin)
		})

		// The event feed is long-lived, so it stays outside the timeout group.
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/events", s.handleEvents)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Use(s.authMiddleware)
			r.Use(s.rateLimitMiddleware)

			r.Get("/me", s.handleMe)
			r.Get("/world", s.handleWorld)
			r.Get("/calendar", s.handleCalendar)
			r.Post("/travel", s.handleTravel)

			r.Post("/inventory/equip", s.handleEquip)
			r.Post("/inventory/unequip", s.handleUnequip)
			r.Post("/inventory/eat", s.handleEat)

			r.Get("/action-queue", s.handleQueueStatus)
			r.Post("/action-queue/start", s.handleQueueStart)
			r.Post("/action-queue/cancel", s.handleQueueCancel)

			r.Post("/combat/start", s.handleCombatStart)
			r.Post("/combat/attack", s.handleCombatAttack)
			r.Post("/combat/flee", s.handleCombatFlee)

			r.Get("/market", s.handleMarket)
			r.Post("/market/buy", s.handleMarketBuy)
			r.Post("/market/sell", s.handleMarketSell)

			r.Get("/house", s.handleHouse)
			r.Post("/house", s.handleBuyHouse)
			r.Post("/house/rooms", s.handleAddRoom)
			r.Post("/house/furniture", s.handleAddFurniture)
			r.Post("/house/repair", s.handleRepairHouse)
			r.Post("/house/garden/plant", s.handlePlant)
			r.Post("/house/garden/harvest", s.handleHarvest)
			r.Post("/house/servants", s.handleHire)
			r.Delete("/house/servants/{id}", s.handleDismiss)

			r.Post("/religions", s.handleCreateReligion)
			r.Get("/religions/{id}", s.handleReligion)
			r.Post("/religions/{id}/join", s.handleJoinReligion)
			r.Get("/religion", s.handleMyReligion)
			r.Post("/religion/leave", s.handleLeaveReligion)
			r.Post("/religion/donate", s.handleDonate)
			r.Post("/religion/pray", s.handlePray)
			r.Post("/religion/hq", s.handleBuildHQ)
			r.Post("/religion/hq/upgrade", s.handleUpgradeHQ)

			r.Post("/roles/petitions", s.handlePetition)
			r.Post("/roles/petitions/{id}/approve", s.handleApprovePetition)
			r.Post("/roles/petitions/{id}/reject", s.handleRejectPetition)
			r.Post("/roles/petitions/{id}/withdraw", s.handleWithdrawPetition)
			r.Post("/roles/resign", s.handleResign)
			r.Post("/roles/tax-rate", s.handleSetTaxRate)

			r.Post("/minigames/dice", s.handleDice)
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			// Browsers cannot set headers on websocket upgrades.
			token = strings.TrimSpace(r.URL.Query().Get("access_token"))
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token", nil)
			return
		}
		user, err := s.tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error(), nil)
			return
		}
		ctx := context.WithValue(r.Context(), playerContextKey, PlayerContext{
			PlayerID: user.ID,
			Username: user.Username,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		player, err := playerFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error(), nil)
			return
		}
		if wait, ok := s.limiter.allow(player.PlayerID); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds()+0.999)))
			writeError(w, http.StatusTooManyRequests, "too many requests, slow down", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func playerFromContext(ctx context.Context) (PlayerContext, error) {
	p, ok := ctx.Value(playerContextKey).(PlayerContext)
	if !ok || p.PlayerID == 0 {
		return PlayerContext{}, errors.New("missing auth context")
	}
	return p, nil
}

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    any                 `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string, fields map[string][]string) {
	writeJSON(w, status, envelope{Success: false, Message: strings.TrimSpace(message), Errors: fields})
}

// writeDomainError maps service errors onto HTTP statuses. Validation and
// unmet game preconditions are 422s.
func writeDomainError(w http.ResponseWriter, log *slog.Logger, err error) {
	var fe *game.FieldError
	switch {
	case errors.As(err, &fe):
		writeError(w, http.StatusUnprocessableEntity, "the given data was invalid", fe.Fields)
	case errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusUnprocessableEntity, "the given data was invalid", map[string][]string{"password": {err.Error()}})
	case errors.Is(err, game.ErrInvalidInput),
		errors.Is(err, game.ErrInsufficientGold),
		errors.Is(err, game.ErrInsufficientEnergy),
		errors.Is(err, game.ErrWrongLocation),
		errors.Is(err, game.ErrCooldown),
		errors.Is(err, game.ErrInventoryFull),
		errors.Is(err, game.ErrConflict):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, game.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, game.ErrUnauthorized), errors.Is(err, auth.ErrInvalidPassword), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, game.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, game.ErrDuplicateIdempotency), errors.Is(err, game.ErrTxConflict):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request timed out", nil)
	default:
		log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

// decodeJSON reads a strict JSON body. Decode failures are reported as
// field-less validation errors.
func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", game.ErrInvalidInput)
		}
		return fmt.Errorf("%w: %v", game.ErrInvalidInput, err)
	}
	return nil
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &game.FieldError{Fields: map[string][]string{name: {"must be a positive integer"}}}
	}
	return id, nil
}
