package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/store"
	"github.com/dukerupert/allowance/internal/websocket"
)

type AssignmentHandler struct {
	broadcaster
	assignmentStore *store.AssignmentStore
	personStore     *store.PersonStore
	choreStore      *store.ChoreStore
	logger          *slog.Logger
}

func NewAssignmentHandler(as *store.AssignmentStore, ps *store.PersonStore, cs *store.ChoreStore, hub *websocket.Hub, logger *slog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		broadcaster:     newBroadcaster(hub),
		assignmentStore: as,
		personStore:     ps,
		choreStore:      cs,
		logger:          logger,
	}
}

type assignmentRequest struct {
	PersonID  int64            `json:"person_id" validate:"required"`
	ChoreID   int64            `json:"chore_id" validate:"required"`
	DayOfWeek int              `json:"day_of_week" validate:"min=0,max=6"`
	Reward    *decimal.Decimal `json:"reward"`
}

// checkRefs verifies the person and chore belong to the family. It writes the
// error response and returns false when they do not.
func (h *AssignmentHandler) checkRefs(w http.ResponseWriter, familyID int64, req assignmentRequest) bool {
	person, err := h.personStore.GetByID(familyID, req.PersonID)
	if err != nil {
		h.logger.Error("get person", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check person")
		return false
	}
	if person == nil {
		writeError(w, http.StatusBadRequest, "person not found")
		return false
	}
	chore, err := h.choreStore.GetByID(familyID, req.ChoreID)
	if err != nil {
		h.logger.Error("get chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check chore")
		return false
	}
	if chore == nil {
		writeError(w, http.StatusBadRequest, "chore not found")
		return false
	}
	if req.Reward != nil && !validMoney(*req.Reward) {
		writeError(w, http.StatusBadRequest, "reward must be a non-negative amount in cents")
		return false
	}
	return true
}

func (h *AssignmentHandler) List(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.assignmentStore.List(auth.FamilyID(r.Context()))
	if err != nil {
		h.logger.Error("list assignments", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list assignments")
		return
	}
	if assignments == nil {
		assignments = []model.Assignment{}
	}
	writeJSON(w, http.StatusOK, assignments)
}

func (h *AssignmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	var req assignmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if !h.checkRefs(w, familyID, req) {
		return
	}

	a, err := h.assignmentStore.Create(familyID, req.PersonID, req.ChoreID, model.DayOfWeek(req.DayOfWeek), req.Reward)
	if errors.Is(err, store.ErrConflict) {
		writeError(w, http.StatusConflict, "assignment already exists")
		return
	}
	if err != nil {
		h.logger.Error("create assignment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create assignment")
		return
	}
	h.broadcast(familyID, websocket.NewMessage("assignment", "created", a.ID, nil))
	writeJSON(w, http.StatusCreated, a)
}

func (h *AssignmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.assignmentStore.GetByID(familyID, id)
	if err != nil {
		h.logger.Error("get assignment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get assignment")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "assignment not found")
		return
	}

	var req assignmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if !h.checkRefs(w, familyID, req) {
		return
	}

	a, err := h.assignmentStore.Update(familyID, id, req.PersonID, req.ChoreID, model.DayOfWeek(req.DayOfWeek), req.Reward)
	if errors.Is(err, store.ErrConflict) {
		writeError(w, http.StatusConflict, "assignment already exists")
		return
	}
	if err != nil {
		h.logger.Error("update assignment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update assignment")
		return
	}
	h.broadcast(familyID, websocket.NewMessage("assignment", "updated", id, nil))
	writeJSON(w, http.StatusOK, a)
}

func (h *AssignmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.assignmentStore.GetByID(familyID, id)
	if err != nil {
		h.logger.Error("get assignment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get assignment")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "assignment not found")
		return
	}

	if err := h.assignmentStore.Delete(familyID, id); err != nil {
		if errors.Is(err, store.ErrInUse) {
			writeError(w, http.StatusConflict, "assignment has recorded commissions")
			return
		}
		h.logger.Error("delete assignment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete assignment")
		return
	}
	h.broadcast(familyID, websocket.NewMessage("assignment", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
