package api

import (
	"context"
	"fmt"
	"net/http"

	"hearthrealm/internal/game"
)

func (s *Server) handleHouse(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	out, err := s.game.House(r.Context(), player.PlayerID)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "", out)
}

func (s *Server) handleBuyHouse(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	var in struct {
		Tier string `json:"tier"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := s.game.BuyHouse(r.Context(), player.PlayerID, in.Tier)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "the deed is yours", out)
}

func (s *Server) handleAddRoom(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	var in struct {
		Room string `json:"room"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := s.game.AddRoom(r.Context(), player.PlayerID, in.Room)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "room built", out)
}

func (s *Server) handleAddFurniture(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	var in struct {
		RoomID    int64  `json:"room_id"`
		Furniture string `json:"furniture"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := s.game.AddFurniture(r.Context(), player.PlayerID, in.RoomID, in.Furniture)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "furniture placed", out)
}

func (s *Server) handleRepairHouse(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	out, err := s.game.RepairHouse(r.Context(), player.PlayerID)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "house repaired", out)
}

func (s *Server) handlePlant(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	var in struct {
		Crop string `json:"crop"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := s.game.Plant(r.Context(), player.PlayerID, in.Crop)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "planted "+in.Crop, out)
}

func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	var in struct {
		PlotID int64 `json:"plot_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := s.game.Harvest(r.Context(), player.PlayerID, in.PlotID)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "harvested", out)
}

func (s *Server) handleHire(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	var in struct {
		Type string `json:"type"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := s.game.Hire(r.Context(), player.PlayerID, in.Type)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "hired a "+in.Type, out)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := s.game.Dismiss(r.Context(), player.PlayerID, id)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "servant dismissed", out)
}

func (s *Server) handleCreateReligion(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	var in struct {
		Name  string `json:"name"`
		Deity string `json:"deity"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := s.game.CreateReligion(r.Context(), game.CreateReligionInput{
		PlayerID: player.PlayerID,
		Name:     in.Name,
		Deity:    in.Deity,
	})
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "you are the prophet of "+out.Name, out)
}

func (s *Server) handleReligion(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := s.game.Religion(r.Context(), player.PlayerID, id)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "", out)
}

func (s *Server) handleMyReligion(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	out, err := s.game.MyReligion(r.Context(), player.PlayerID)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "", out)
}

func (s *Server) handleJoinReligion(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := s.game.JoinReligion(r.Context(), player.PlayerID, id)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "you joined "+out.Name, out)
}

func (s *Server) handleLeaveReligion(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	dissolved, err := s.game.LeaveReligion(r.Context(), player.PlayerID)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	msg := "you left your religion"
	if dissolved {
		msg = "your religion has been dissolved"
	}
	writeOK(w, http.StatusOK, msg, map[string]any{"dissolved": dissolved})
}

func (s *Server) handleDonate(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	var in struct {
		Gold int64 `json:"gold"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := s.game.Donate(r.Context(), player.PlayerID, in.Gold)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, fmt.Sprintf("donated %d gold", in.Gold), out)
}

func (s *Server) handlePray(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	out, err := s.game.Pray(r.Context(), player.PlayerID)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "your prayers are heard", out)
}

func (s *Server) handleBuildHQ(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	out, err := s.game.BuildHQ(r.Context(), player.PlayerID)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "construction has begun", out)
}

func (s *Server) handleUpgradeHQ(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	out, err := s.game.UpgradeHQ(r.Context(), player.PlayerID)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "construction has begun", out)
}

func (s *Server) handlePetition(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	var in struct {
		Location string `json:"location"`
		Message  string `json:"message"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := s.game.Petition(r.Context(), game.PetitionInput{
		PlayerID: player.PlayerID,
		Location: in.Location,
		Message:  in.Message,
	})
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "petition filed", out)
}

type petitionDecision func(ctx context.Context, playerID, petitionID int64) (game.PetitionView, error)

func (s *Server) handlePetitionDecision(decide petitionDecision, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, err := playerFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error(), nil)
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, s.log, err)
			return
		}
		out, err := decide(r.Context(), player.PlayerID, id)
		if err != nil {
			writeDomainError(w, s.log, err)
			return
		}
		writeOK(w, http.StatusOK, message, out)
	}
}

func (s *Server) handleApprovePetition(w http.ResponseWriter, r *http.Request) {
	s.handlePetitionDecision(s.game.ApprovePetition, "petition approved")(w, r)
}

func (s *Server) handleRejectPetition(w http.ResponseWriter, r *http.Request) {
	s.handlePetitionDecision(s.game.RejectPetition, "petition rejected")(w, r)
}

func (s *Server) handleWithdrawPetition(w http.ResponseWriter, r *http.Request) {
	s.handlePetitionDecision(s.game.WithdrawPetition, "petition withdrawn")(w, r)
}

func (s *Server) handleResign(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	if err := s.game.Resign(r.Context(), player.PlayerID); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, "you have resigned your office", nil)
}

func (s *Server) handleSetTaxRate(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	var in struct {
		Rate int `json:"rate"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out, err := s.game.SetTaxRate(r.Context(), player.PlayerID, in.Rate)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeOK(w, http.StatusOK, fmt.Sprintf("tax rate set to %d%%", out.TaxRate), out)
}
