package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"hearthrealm/internal/auth"
	"hearthrealm/internal/game"
)

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	id, err := s.game.CreatePlayer(r.Context(), game.SignupInput{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
	})
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	session, err := s.tokens.Issue(auth.User{ID: id, Username: strings.TrimSpace(in.Username)})
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "welcome to the realm", session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	creds, err := s.game.Credentials(r.Context(), in.Email)
	if errors.Is(err, game.ErrNotFound) {
		// Same answer for unknown emails and wrong passwords.
		err = auth.ErrInvalidPassword
	}
	if err == nil {
		err = auth.CheckPassword(creds.PasswordHash, in.Password)
	}
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	session, err := s.tokens.Issue(auth.User{ID: creds.PlayerID, Username: creds.Username})
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "logged in", session)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	out, err := s.game.Profile(r.Context(), player.PlayerID)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "", out)
}

func (s *Server) handleWorld(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.World(r.Context())
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "", out)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.Calendar(r.Context())
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, out.String(), out)
}

func (s *Server) handleTravel(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	var in struct {
		Destination string `json:"destination"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := s.game.Travel(r.Context(), game.TravelInput{PlayerID: player.PlayerID, Destination: in.Destination})
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "you arrive at "+out.To.Name, out)
}

type itemRequest struct {
	Item string `json:"item"`
}

func (s *Server) handleEquip(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	var in itemRequest
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := s.game.Equip(r.Context(), player.PlayerID, in.Item)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "equipped", out)
}

func (s *Server) handleUnequip(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	out, err := s.game.Unequip(r.Context(), player.PlayerID)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "unequipped", out)
}

func (s *Server) handleEat(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	var in itemRequest
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := s.game.Eat(r.Context(), player.PlayerID, in.Item)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "you eat the "+strings.ReplaceAll(in.Item, "_", " "), out)
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	out, err := s.game.QueueStatus(r.Context(), player.PlayerID)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "", out)
}

func (s *Server) handleQueueStart(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	var in struct {
		Action      string `json:"action"`
		Repetitions int    `json:"repetitions"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := s.game.StartQueue(r.Context(), game.StartQueueInput{
		PlayerID:    player.PlayerID,
		Action:      in.Action,
		Repetitions: in.Repetitions,
	})
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "queue started", out)
}

func (s *Server) handleQueueCancel(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	out, err := s.game.CancelQueue(r.Context(), player.PlayerID)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "queue cancelled", out)
}

func (s *Server) handleCombatStart(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	var in struct {
		Monster string `json:"monster"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := s.game.StartCombat(r.Context(), player.PlayerID, in.Monster)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "combat started", out)
}

func (s *Server) handleCombatAttack(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	out, err := s.game.Attack(r.Context(), player.PlayerID)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, out.Session.Status, out)
}

func (s *Server) handleCombatFlee(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	out, err := s.game.Flee(r.Context(), player.PlayerID)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "you fled", out)
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	out, err := s.game.Prices(r.Context(), player.PlayerID)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "", map[string]any{"rows": out})
}

func (s *Server) handleMarketBuy(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, s.game.Buy, "bought")
}

func (s *Server) handleMarketSell(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, s.game.Sell, "sold")
}

type tradeFunc func(context.Context, game.TradeInput) (game.TradeResult, error)

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request, trade tradeFunc, verb string) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	var in struct {
		Item     string `json:"item"`
		Quantity int64  `json:"quantity"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := trade(r.Context(), game.TradeInput{
		PlayerID:       player.PlayerID,
		Item:           in.Item,
		Quantity:       in.Quantity,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, fmt.Sprintf("%s %d %s for %d gold", verb, out.Quantity, out.Item, out.Total), out)
}

func (s *Server) handleDice(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	var in struct {
		Stake int64 `json:"stake"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := s.game.RollDice(r.Context(), game.DiceInput{
		PlayerID:       player.PlayerID,
		Stake:          in.Stake,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, fmt.Sprintf("rolled %d and %d: %s", out.DieOne, out.DieTwo, out.Result), out)
}
