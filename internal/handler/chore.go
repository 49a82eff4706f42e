package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/store"
	"github.com/dukerupert/allowance/internal/websocket"
)

type ChoreHandler struct {
	broadcaster
	choreStore *store.ChoreStore
	logger     *slog.Logger
}

func NewChoreHandler(cs *store.ChoreStore, hub *websocket.Hub, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{broadcaster: newBroadcaster(hub), choreStore: cs, logger: logger}
}

type choreRequest struct {
	Name   string          `json:"name" validate:"required,max=40"`
	Reward decimal.Decimal `json:"reward"`
}

// validMoney reports whether d is a non-negative amount with at most two decimals.
func validMoney(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Round(2))
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	chores, err := h.choreStore.List(auth.FamilyID(r.Context()))
	if err != nil {
		h.logger.Error("list chores", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list chores")
		return
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	writeJSON(w, http.StatusOK, chores)
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	var req choreRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !validMoney(req.Reward) {
		writeError(w, http.StatusBadRequest, "reward must be a non-negative amount in cents")
		return
	}

	chore, err := h.choreStore.Create(familyID, name, req.Reward)
	if err != nil {
		h.logger.Error("create chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create chore")
		return
	}
	h.broadcast(familyID, websocket.NewMessage("chore", "created", chore.ID, nil))
	writeJSON(w, http.StatusCreated, chore)
}

func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.choreStore.GetByID(familyID, id)
	if err != nil {
		h.logger.Error("get chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get chore")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "chore not found")
		return
	}

	var req choreRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !validMoney(req.Reward) {
		writeError(w, http.StatusBadRequest, "reward must be a non-negative amount in cents")
		return
	}

	chore, err := h.choreStore.Update(familyID, id, name, req.Reward)
	if err != nil {
		h.logger.Error("update chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update chore")
		return
	}
	h.broadcast(familyID, websocket.NewMessage("chore", "updated", id, nil))
	writeJSON(w, http.StatusOK, chore)
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.choreStore.GetByID(familyID, id)
	if err != nil {
		h.logger.Error("get chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get chore")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "chore not found")
		return
	}

	if err := h.choreStore.Delete(familyID, id); err != nil {
		if errors.Is(err, store.ErrInUse) {
			writeError(w, http.StatusConflict, "chore is still assigned")
			return
		}
		h.logger.Error("delete chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete chore")
		return
	}
	h.broadcast(familyID, websocket.NewMessage("chore", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
