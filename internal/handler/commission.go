package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/store"
	"github.com/dukerupert/allowance/internal/websocket"
)

const exportSheet = "Commissions"

type CommissionHandler struct {
	broadcaster
	commissionStore *store.CommissionStore
	personStore     *store.PersonStore
	choreStore      *store.ChoreStore
	loc             *time.Location
	now             func() time.Time
	logger          *slog.Logger
}

func NewCommissionHandler(cms *store.CommissionStore, ps *store.PersonStore, cs *store.ChoreStore, hub *websocket.Hub, loc *time.Location, logger *slog.Logger) *CommissionHandler {
	return &CommissionHandler{
		broadcaster:     newBroadcaster(hub),
		commissionStore: cms,
		personStore:     ps,
		choreStore:      cs,
		loc:             loc,
		now:             time.Now,
		logger:          logger,
	}
}

// bonusRequest records a chore outside the weekly schedule. Either ChoreID or
// ChoreName identifies the chore; Amount defaults to the chore's reward.
type bonusRequest struct {
	PersonID  int64            `json:"person_id" validate:"required"`
	ChoreID   *int64           `json:"chore_id"`
	ChoreName string           `json:"chore_name" validate:"max=40"`
	Amount    *decimal.Decimal `json:"amount"`
	Date      string           `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *CommissionHandler) List(w http.ResponseWriter, r *http.Request) {
	commissions, err := h.commissionStore.List(auth.FamilyID(r.Context()))
	if err != nil {
		h.logger.Error("list commissions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list commissions")
		return
	}
	if commissions == nil {
		commissions = []model.Commission{}
	}
	writeJSON(w, http.StatusOK, commissions)
}

// CreateBonus records an ad-hoc chore as a commission for the given date.
func (h *CommissionHandler) CreateBonus(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	var req bonusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	person, err := h.personStore.GetByID(familyID, req.PersonID)
	if err != nil {
		h.logger.Error("get person", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check person")
		return
	}
	if person == nil {
		writeError(w, http.StatusBadRequest, "person not found")
		return
	}

	n := model.NewCommission{FamilyID: familyID, PersonID: person.ID, Rating: model.RatingMeetsExpectations}
	if req.ChoreID != nil {
		chore, err := h.choreStore.GetByID(familyID, *req.ChoreID)
		if err != nil {
			h.logger.Error("get chore", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to check chore")
			return
		}
		if chore == nil {
			writeError(w, http.StatusBadRequest, "chore not found")
			return
		}
		n.ChoreID = &chore.ID
		n.BaseAmount = chore.Reward
	} else {
		n.ChoreName = strings.TrimSpace(req.ChoreName)
		if n.ChoreName == "" {
			writeError(w, http.StatusBadRequest, "chore_id or chore_name is required")
			return
		}
		if req.Amount == nil {
			writeError(w, http.StatusBadRequest, "amount is required for an ad-hoc chore")
			return
		}
	}
	if req.Amount != nil {
		if !validMoney(*req.Amount) {
			writeError(w, http.StatusBadRequest, "amount must be a non-negative amount in cents")
			return
		}
		n.BaseAmount = *req.Amount
	}

	n.Date = model.Today(h.now(), h.loc)
	if req.Date != "" {
		if n.Date, err = model.ParseDate(req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
	}

	c, err := h.commissionStore.Create(n)
	if errors.Is(err, store.ErrConflict) {
		writeError(w, http.StatusConflict, "already recorded")
		return
	}
	if err != nil {
		h.logger.Error("create bonus commission", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record chore")
		return
	}
	h.broadcast(familyID, websocket.NewMessage("commission", "created", c.ID, map[string]any{"person_id": c.PersonID, "date": c.Date.String()}))
	writeJSON(w, http.StatusCreated, c)
}

// Delete undoes an unpaid commission.
func (h *CommissionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.commissionStore.GetByID(familyID, id)
	if err != nil {
		h.logger.Error("get commission", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get commission")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "commission not found")
		return
	}

	if err := h.commissionStore.Delete(familyID, id); err != nil {
		if errors.Is(err, store.ErrPaid) {
			writeError(w, http.StatusConflict, "commission already paid")
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "commission not found")
			return
		}
		h.logger.Error("delete commission", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete commission")
		return
	}
	h.broadcast(familyID, websocket.NewMessage("commission", "deleted", id, map[string]any{"person_id": existing.PersonID, "date": existing.Date.String()}))
	w.WriteHeader(http.StatusNoContent)
}

var exportHeader = []string{"Date", "Person", "Chore", "Base Amount", "Rating", "Final Amount", "Balance", "Paid At"}

// Export streams the family's commission history as an XLSX workbook.
func (h *CommissionHandler) Export(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	commissions, err := h.commissionStore.List(familyID)
	if err != nil {
		h.logger.Error("list commissions for export", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export commissions")
		return
	}

	f, err := buildCommissionWorkbook(commissions)
	if err != nil {
		h.logger.Error("build export workbook", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export commissions")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=commissions-%d.xlsx", familyID))
	if err := f.Write(w); err != nil {
		h.logger.Error("write export workbook", "error", err)
	}
}

func buildCommissionWorkbook(commissions []model.Commission) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	setRow := func(row int, values []any) error {
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return err
			}
		}
		return nil
	}

	header := make([]any, len(exportHeader))
	for i, v := range exportHeader {
		header[i] = v
	}
	if err := setRow(1, header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, c := range commissions {
		paidAt := ""
		if c.PaidAt != nil {
			paidAt = c.PaidAt.Format("2006-01-02 15:04")
		}
		base, _ := c.BaseAmount.Float64()
		final, _ := c.FinalAmount.Float64()
		balance, _ := c.Balance.Float64()
		row := []any{c.Date.String(), c.PersonName, c.ChoreName, base, int(c.Rating), final, balance, paidAt}
		if err := setRow(i+2, row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	return f, nil
}
