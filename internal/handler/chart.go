package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/chart"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/store"
	"github.com/dukerupert/allowance/internal/websocket"
)

type ChartHandler struct {
	broadcaster
	personStore     *store.PersonStore
	choreStore      *store.ChoreStore
	assignmentStore *store.AssignmentStore
	commissionStore *store.CommissionStore
	writer          chart.CommissionWriter
	loc             *time.Location
	now             func() time.Time
	logger          *slog.Logger
}

func NewChartHandler(
	ps *store.PersonStore,
	cs *store.ChoreStore,
	as *store.AssignmentStore,
	cms *store.CommissionStore,
	hub *websocket.Hub,
	loc *time.Location,
	logger *slog.Logger,
) *ChartHandler {
	return &ChartHandler{
		broadcaster:     newBroadcaster(hub),
		personStore:     ps,
		choreStore:      cs,
		assignmentStore: as,
		commissionStore: cms,
		writer:          cms,
		loc:             loc,
		now:             time.Now,
		logger:          logger,
	}
}

func (h *ChartHandler) load(familyID int64, date civil.Date) (chart.Chart, error) {
	people, err := h.personStore.List(familyID)
	if err != nil {
		return chart.Chart{}, fmt.Errorf("load people: %w", err)
	}
	chores, err := h.choreStore.List(familyID)
	if err != nil {
		return chart.Chart{}, fmt.Errorf("load chores: %w", err)
	}
	assignments, err := h.assignmentStore.List(familyID)
	if err != nil {
		return chart.Chart{}, fmt.Errorf("load assignments: %w", err)
	}
	commissions, err := h.commissionStore.ListForDate(familyID, date)
	if err != nil {
		return chart.Chart{}, fmt.Errorf("load commissions: %w", err)
	}
	return chart.Assemble(chart.Input{
		Date:        date,
		People:      people,
		Chores:      chores,
		Assignments: assignments,
		Commissions: commissions,
	}), nil
}

// Get returns the chart for ?date=YYYY-MM-DD, or today when no date is given.
func (h *ChartHandler) Get(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateQuery(r, h.now(), h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	c, err := h.load(auth.FamilyID(r.Context()), date)
	if err != nil {
		h.logger.Error("assemble chart", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load chart")
		return
	}
	if c.Entries == nil {
		c.Entries = []chart.Entry{}
	}
	writeJSON(w, http.StatusOK, c)
}

type toggleRequest struct {
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	AssignmentID int64  `json:"assignment_id" validate:"required_without=CommissionID"`
	CommissionID int64  `json:"commission_id"`
}

type toggleResponse struct {
	Action     chart.Action      `json:"action"`
	Commission *model.Commission `json:"commission,omitempty"`
	Chart      chart.Chart       `json:"chart"`
}

// Toggle flips a chart entry between done and not done. The entry is looked
// up on a freshly assembled chart so rewards always come from stored data.
func (h *ChartHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	var req toggleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	c, err := h.load(familyID, date)
	if err != nil {
		h.logger.Error("assemble chart", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load chart")
		return
	}
	entry, ok := c.Find(req.AssignmentID, req.CommissionID)
	if !ok {
		writeError(w, http.StatusNotFound, "chart entry not found")
		return
	}

	action, created, err := chart.Toggle(h.writer, familyID, date, entry)
	// Another request already removed the commission; report the current chart.
	stale := errors.Is(err, store.ErrNotFound)
	if stale {
		action, err = chart.ActionNone, nil
	}
	switch {
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "already recorded")
		return
	case errors.Is(err, store.ErrPaid):
		writeError(w, http.StatusConflict, "commission already paid")
		return
	case errors.Is(err, chart.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("toggle chart entry", "family_id", familyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update chart")
		return
	}

	switch action {
	case chart.ActionCreate:
		h.broadcast(familyID, websocket.NewMessage("commission", "created", created.ID, map[string]any{"person_id": created.PersonID, "date": date.String()}))
	case chart.ActionDelete:
		h.broadcast(familyID, websocket.NewMessage("commission", "deleted", entry.Commission.ID, map[string]any{"person_id": entry.PersonID, "date": date.String()}))
	}

	if action != chart.ActionNone || stale {
		if c, err = h.load(familyID, date); err != nil {
			h.logger.Error("reload chart", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load chart")
			return
		}
	}
	if c.Entries == nil {
		c.Entries = []chart.Entry{}
	}
	writeJSON(w, http.StatusOK, toggleResponse{Action: action, Commission: created, Chart: c})
}
