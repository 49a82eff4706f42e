package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/payment"
	"github.com/dukerupert/allowance/internal/store"
	"github.com/dukerupert/allowance/internal/websocket"
)

type FamilyHandler struct {
	broadcaster
	familyStore *store.FamilyStore
	logger      *slog.Logger
}

func NewFamilyHandler(fs *store.FamilyStore, hub *websocket.Hub, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{broadcaster: newBroadcaster(hub), familyStore: fs, logger: logger}
}

type familyRequest struct {
	Name string `json:"name" validate:"required,max=20"`
}

type paymentCategoriesRequest struct {
	Categories []model.PaymentCategory `json:"categories" validate:"max=5"`
}

func (h *FamilyHandler) List(w http.ResponseWriter, r *http.Request) {
	families, err := h.familyStore.ListForUser(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list families", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list families")
		return
	}
	if families == nil {
		families = []model.Family{}
	}
	writeJSON(w, http.StatusOK, families)
}

func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req familyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	family, err := h.familyStore.Create(name, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("create family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create family")
		return
	}
	writeJSON(w, http.StatusCreated, family)
}

func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	family, err := h.familyStore.GetByID(auth.FamilyID(r.Context()))
	if err != nil {
		h.logger.Error("get family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get family")
		return
	}
	if family == nil {
		writeError(w, http.StatusNotFound, "family not found")
		return
	}
	writeJSON(w, http.StatusOK, family)
}

func (h *FamilyHandler) Update(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	var req familyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	family, err := h.familyStore.Update(familyID, name)
	if err != nil {
		h.logger.Error("update family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update family")
		return
	}
	h.broadcast(familyID, websocket.NewMessage("family", "updated", familyID, nil))
	writeJSON(w, http.StatusOK, family)
}

// UpdatePaymentCategories replaces the family's payout split.
func (h *FamilyHandler) UpdatePaymentCategories(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	var req paymentCategoriesRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	cats := make(model.PaymentCategories, 0, len(req.Categories))
	for _, c := range req.Categories {
		cats = append(cats, model.PaymentCategory{Name: strings.TrimSpace(c.Name), Percent: c.Percent})
	}
	if err := payment.ValidateCategories(cats); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	family, err := h.familyStore.UpdatePaymentCategories(familyID, cats)
	if err != nil {
		h.logger.Error("update payment categories", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update payment categories")
		return
	}
	h.broadcast(familyID, websocket.NewMessage("family", "updated", familyID, nil))
	writeJSON(w, http.StatusOK, family)
}

func (h *FamilyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	if err := h.familyStore.Delete(familyID); err != nil {
		h.logger.Error("delete family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete family")
		return
	}
	h.broadcast(familyID, websocket.NewMessage("family", "deleted", familyID, nil))
	w.WriteHeader(http.StatusNoContent)
}
