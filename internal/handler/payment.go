package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/currency"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/payment"
	"github.com/dukerupert/allowance/internal/store"
	"github.com/dukerupert/allowance/internal/websocket"
)

type PaymentHandler struct {
	broadcaster
	familyStore     *store.FamilyStore
	personStore     *store.PersonStore
	commissionStore *store.CommissionStore
	formatter       *currency.Formatter
	now             func() time.Time
	logger          *slog.Logger
}

func NewPaymentHandler(fs *store.FamilyStore, ps *store.PersonStore, cms *store.CommissionStore, formatter *currency.Formatter, hub *websocket.Hub, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		broadcaster:     newBroadcaster(hub),
		familyStore:     fs,
		personStore:     ps,
		commissionStore: cms,
		formatter:       formatter,
		now:             time.Now,
		logger:          logger,
	}
}

type formattedLine struct {
	payment.Line
	Formatted string `json:"formatted"`
}

type paymentResponse struct {
	PersonID           int64              `json:"person_id"`
	PersonName         string             `json:"person_name"`
	Locale             string             `json:"locale"`
	AmountDue          decimal.Decimal    `json:"amount_due"`
	AmountDueFormatted string             `json:"amount_due_formatted"`
	Lines              []formattedLine    `json:"lines"`
	Leftover           decimal.Decimal    `json:"leftover"`
	Payable            bool               `json:"payable"`
	Outstanding        []model.Commission `json:"outstanding"`
}

// person resolves {personID} within the request's family. It writes the error
// response and returns nil when the person cannot be used.
func (h *PaymentHandler) person(w http.ResponseWriter, r *http.Request) *model.Person {
	personID, err := parsePathID(r, "personID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid person id")
		return nil
	}
	p, err := h.personStore.GetByID(auth.FamilyID(r.Context()), personID)
	if err != nil {
		h.logger.Error("get person", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get person")
		return nil
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "person not found")
		return nil
	}
	return p
}

// Get returns what a person is owed, split across the family's payment
// categories and formatted for the caller's Accept-Language.
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	p := h.person(w, r)
	if p == nil {
		return
	}

	family, err := h.familyStore.GetByID(familyID)
	if err != nil || family == nil {
		h.logger.Error("get family", "family_id", familyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get family")
		return
	}

	outstanding, err := h.commissionStore.ListOutstanding(familyID, p.ID)
	if err != nil {
		h.logger.Error("list outstanding commissions", "person_id", p.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load commissions")
		return
	}
	due := decimal.Zero
	for _, c := range outstanding {
		due = due.Add(c.Balance)
	}

	result, err := payment.Split(due, family.PaymentCategories)
	if errors.Is(err, payment.ErrInvalid) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("split payment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to split payment")
		return
	}

	locale := h.formatter.Locale(r.Header.Get("Accept-Language"))
	lines := make([]formattedLine, len(result.Lines))
	for i, l := range result.Lines {
		lines[i] = formattedLine{Line: l, Formatted: h.formatter.Format(l.Amount, locale)}
	}
	if outstanding == nil {
		outstanding = []model.Commission{}
	}

	writeJSON(w, http.StatusOK, paymentResponse{
		PersonID:           p.ID,
		PersonName:         p.Name,
		Locale:             locale,
		AmountDue:          result.AmountDue,
		AmountDueFormatted: h.formatter.Format(result.AmountDue, locale),
		Lines:              lines,
		Leftover:           result.Leftover,
		Payable:            result.Payable,
		Outstanding:        outstanding,
	})
}

type payResponse struct {
	Paid   int64           `json:"paid"`
	Amount decimal.Decimal `json:"amount"`
}

// Pay settles every outstanding commission for the person. Paying when nothing
// is owed changes nothing and notifies nobody.
func (h *PaymentHandler) Pay(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	p := h.person(w, r)
	if p == nil {
		return
	}

	due, err := h.commissionStore.AmountDue(familyID, p.ID)
	if err != nil {
		h.logger.Error("amount due", "person_id", p.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record payment")
		return
	}
	if !due.IsPositive() {
		writeJSON(w, http.StatusOK, payResponse{Paid: 0, Amount: decimal.Zero})
		return
	}

	n, total, err := h.commissionStore.MarkPaid(familyID, p.ID, h.now())
	if err != nil {
		h.logger.Error("mark paid", "person_id", p.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record payment")
		return
	}
	if n > 0 {
		h.logger.Info("payment recorded", "family_id", familyID, "person_id", p.ID, "commissions", n, "amount", total.StringFixed(2))
		h.broadcast(familyID, websocket.NewMessage("payment", "paid", p.ID, map[string]any{"amount": total.StringFixed(2), "commissions": n}))
	}
	writeJSON(w, http.StatusOK, payResponse{Paid: n, Amount: total})
}
