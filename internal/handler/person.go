package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/store"
	"github.com/dukerupert/allowance/internal/websocket"
)

type PersonHandler struct {
	broadcaster
	personStore *store.PersonStore
	logger      *slog.Logger
}

func NewPersonHandler(ps *store.PersonStore, hub *websocket.Hub, logger *slog.Logger) *PersonHandler {
	return &PersonHandler{broadcaster: newBroadcaster(hub), personStore: ps, logger: logger}
}

type personRequest struct {
	Name     string `json:"name" validate:"required,max=20"`
	Birthday string `json:"birthday" validate:"required,datetime=2006-01-02"`
}

func (h *PersonHandler) List(w http.ResponseWriter, r *http.Request) {
	people, err := h.personStore.List(auth.FamilyID(r.Context()))
	if err != nil {
		h.logger.Error("list people", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list people")
		return
	}
	if people == nil {
		people = []model.Person{}
	}
	writeJSON(w, http.StatusOK, people)
}

func (h *PersonHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	var req personRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	birthday, err := model.ParseDate(req.Birthday)
	if name == "" || err != nil {
		writeError(w, http.StatusBadRequest, "name and a valid birthday are required")
		return
	}

	person, err := h.personStore.Create(familyID, name, birthday)
	if err != nil {
		h.logger.Error("create person", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create person")
		return
	}
	h.broadcast(familyID, websocket.NewMessage("person", "created", person.ID, nil))
	writeJSON(w, http.StatusCreated, person)
}

func (h *PersonHandler) Update(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.personStore.GetByID(familyID, id)
	if err != nil {
		h.logger.Error("get person", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get person")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "person not found")
		return
	}

	var req personRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	birthday, err := model.ParseDate(req.Birthday)
	if name == "" || err != nil {
		writeError(w, http.StatusBadRequest, "name and a valid birthday are required")
		return
	}

	person, err := h.personStore.Update(familyID, id, name, birthday)
	if err != nil {
		h.logger.Error("update person", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update person")
		return
	}
	h.broadcast(familyID, websocket.NewMessage("person", "updated", id, nil))
	writeJSON(w, http.StatusOK, person)
}

func (h *PersonHandler) Delete(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.personStore.GetByID(familyID, id)
	if err != nil {
		h.logger.Error("get person", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get person")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "person not found")
		return
	}

	if err := h.personStore.Delete(familyID, id); err != nil {
		if errors.Is(err, store.ErrInUse) {
			writeError(w, http.StatusConflict, "person still has chore assignments")
			return
		}
		h.logger.Error("delete person", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete person")
		return
	}
	h.broadcast(familyID, websocket.NewMessage("person", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
