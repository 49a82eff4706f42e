package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/currency"
	"github.com/dukerupert/allowance/internal/database"
	"github.com/dukerupert/allowance/internal/middleware"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/store"
	"github.com/dukerupert/allowance/internal/websocket"
)

// 2024-01-01 is a Monday.
const testDate = "2024-01-01"

type testEnv struct {
	users       *store.UserStore
	sessions    *store.SessionStore
	families    *store.FamilyStore
	people      *store.PersonStore
	chores      *store.ChoreStore
	assignments *store.AssignmentStore
	commissions *store.CommissionStore
	logger      *slog.Logger

	userID       int64
	familyID     int64
	personID     int64
	choreID      int64
	assignmentID int64
}

func setupHandlerTest(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		users:       store.NewUserStore(db),
		sessions:    store.NewSessionStore(db),
		families:    store.NewFamilyStore(db),
		people:      store.NewPersonStore(db),
		chores:      store.NewChoreStore(db),
		assignments: store.NewAssignmentStore(db),
		commissions: store.NewCommissionStore(db),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	u, err := env.users.Create("parent@example.com", "Parent", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	f, err := env.families.Create("Smiths", u.ID)
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	birthday, _ := model.ParseDate("2015-06-01")
	p, err := env.people.Create(f.ID, "Ann", birthday)
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	c, err := env.chores.Create(f.ID, "Dishes", decimal.RequireFromString("1.25"))
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	a, err := env.assignments.Create(f.ID, p.ID, c.ID, model.Monday, nil)
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}

	env.userID = u.ID
	env.familyID = f.ID
	env.personID = p.ID
	env.choreID = c.ID
	env.assignmentID = a.ID
	return env
}

// request builds a request that has already passed RequireAuth and RequireFamily.
func (e *testEnv) request(method, target, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	ctx := auth.WithAuth(r.Context(), auth.AuthContext{UserID: e.userID, SessionID: 1})
	ctx = auth.WithFamily(ctx, e.familyID)
	return r.WithContext(ctx)
}

func (e *testEnv) chartHandler() *ChartHandler {
	return NewChartHandler(e.people, e.chores, e.assignments, e.commissions, nil, time.UTC, e.logger)
}

func (e *testEnv) paymentHandler(t *testing.T) *PaymentHandler {
	t.Helper()
	f, err := currency.NewFormatter(8, "en-US")
	if err != nil {
		t.Fatalf("new formatter: %v", err)
	}
	return NewPaymentHandler(e.families, e.people, e.commissions, f, nil, e.logger)
}

type chartBody struct {
	Date    string `json:"date"`
	Entries []struct {
		Kind         string          `json:"kind"`
		AssignmentID *int64          `json:"assignment_id"`
		PersonName   string          `json:"person_name"`
		ChoreName    string          `json:"chore_name"`
		Reward       decimal.Decimal `json:"reward"`
		IsCompleted  bool            `json:"is_completed"`
		IsPaid       bool            `json:"is_paid"`
		Commission   *struct {
			ID int64 `json:"id"`
		} `json:"commission"`
	} `json:"entries"`
}

type toggleBody struct {
	Action     string `json:"action"`
	Commission *struct {
		ID          int64           `json:"id"`
		FinalAmount decimal.Decimal `json:"final_amount"`
	} `json:"commission"`
	Chart chartBody `json:"chart"`
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func (e *testEnv) toggle(t *testing.T, h *ChartHandler, body string) (*httptest.ResponseRecorder, toggleBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Toggle(rec, e.request(http.MethodPost, "/api/families/1/chart/toggle", body))
	var out toggleBody
	if rec.Code == http.StatusOK {
		decodeBody(t, rec, &out)
	}
	return rec, out
}

func TestChartGet(t *testing.T) {
	env := setupHandlerTest(t)
	h := env.chartHandler()

	rec := httptest.NewRecorder()
	h.Get(rec, env.request(http.MethodGet, "/api/families/1/chart?date="+testDate, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var c chartBody
	decodeBody(t, rec, &c)
	if c.Date != testDate {
		t.Errorf("date = %q, want %q", c.Date, testDate)
	}
	if len(c.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(c.Entries))
	}
	e := c.Entries[0]
	if e.PersonName != "Ann" || e.ChoreName != "Dishes" {
		t.Errorf("entry = %s/%s, want Ann/Dishes", e.PersonName, e.ChoreName)
	}
	if !e.Reward.Equal(decimal.RequireFromString("1.25")) {
		t.Errorf("reward = %s, want 1.25", e.Reward)
	}
	if e.IsCompleted || e.IsPaid {
		t.Errorf("completed = %v, paid = %v, want false/false", e.IsCompleted, e.IsPaid)
	}

	// Tuesday has no assignments.
	rec = httptest.NewRecorder()
	h.Get(rec, env.request(http.MethodGet, "/api/families/1/chart?date=2024-01-02", ""))
	decodeBody(t, rec, &c)
	if len(c.Entries) != 0 {
		t.Errorf("tuesday entries = %d, want 0", len(c.Entries))
	}
}

func TestChartGetRejectsBadDate(t *testing.T) {
	env := setupHandlerTest(t)
	rec := httptest.NewRecorder()
	env.chartHandler().Get(rec, env.request(http.MethodGet, "/api/families/1/chart?date=01/01/2024", ""))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestChartToggleRoundTrip(t *testing.T) {
	env := setupHandlerTest(t)
	h := env.chartHandler()
	body := `{"date":"` + testDate + `","assignment_id":` + strconv.FormatInt(env.assignmentID, 10) + `}`

	rec, out := env.toggle(t, h, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("first toggle status = %d, body %s", rec.Code, rec.Body.String())
	}
	if out.Action != "create" {
		t.Errorf("action = %q, want create", out.Action)
	}
	if out.Commission == nil || !out.Commission.FinalAmount.Equal(decimal.RequireFromString("1.25")) {
		t.Errorf("commission = %+v, want final amount 1.25", out.Commission)
	}
	if len(out.Chart.Entries) != 1 || !out.Chart.Entries[0].IsCompleted {
		t.Errorf("chart after create = %+v, want one completed entry", out.Chart.Entries)
	}

	rec, out = env.toggle(t, h, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("second toggle status = %d", rec.Code)
	}
	if out.Action != "delete" {
		t.Errorf("action = %q, want delete", out.Action)
	}
	if len(out.Chart.Entries) != 1 || out.Chart.Entries[0].IsCompleted {
		t.Errorf("chart after delete = %+v, want one open entry", out.Chart.Entries)
	}

	date, _ := model.ParseDate(testDate)
	left, err := env.commissions.ListForDate(env.familyID, date)
	if err != nil {
		t.Fatalf("list commissions: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("commissions = %d, want 0", len(left))
	}
}

func TestChartToggleUnknownEntry(t *testing.T) {
	env := setupHandlerTest(t)
	rec, _ := env.toggle(t, env.chartHandler(), `{"date":"`+testDate+`","assignment_id":9999}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestChartToggleRequiresTarget(t *testing.T) {
	env := setupHandlerTest(t)
	rec, _ := env.toggle(t, env.chartHandler(), `{"date":"`+testDate+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestPaidEntryCannotBeToggled(t *testing.T) {
	env := setupHandlerTest(t)
	h := env.chartHandler()
	body := `{"date":"` + testDate + `","assignment_id":` + strconv.FormatInt(env.assignmentID, 10) + `}`
	if rec, _ := env.toggle(t, h, body); rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", rec.Code)
	}

	ph := env.paymentHandler(t)
	r := env.request(http.MethodPost, "/api/families/1/payments/1/pay", "")
	r.SetPathValue("personID", strconv.FormatInt(env.personID, 10))
	rec := httptest.NewRecorder()
	ph.Pay(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("pay status = %d, body %s", rec.Code, rec.Body.String())
	}
	var paid payResponse
	decodeBody(t, rec, &paid)
	if paid.Paid != 1 || !paid.Amount.Equal(decimal.RequireFromString("1.25")) {
		t.Errorf("paid = %d/%s, want 1/1.25", paid.Paid, paid.Amount)
	}

	rec, out := env.toggle(t, h, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle after pay status = %d", rec.Code)
	}
	if out.Action != "none" {
		t.Errorf("action = %q, want none", out.Action)
	}
	if len(out.Chart.Entries) != 1 || !out.Chart.Entries[0].IsPaid || !out.Chart.Entries[0].IsCompleted {
		t.Errorf("entry = %+v, want completed and paid", out.Chart.Entries)
	}

	// Paying again is a no-op.
	rec = httptest.NewRecorder()
	ph.Pay(rec, r)
	decodeBody(t, rec, &paid)
	if paid.Paid != 0 || !paid.Amount.IsZero() {
		t.Errorf("second pay = %d/%s, want 0/0", paid.Paid, paid.Amount)
	}
}

func TestPaymentGetSplitsAmountDue(t *testing.T) {
	env := setupHandlerTest(t)
	cats := model.PaymentCategories{{Name: "Spend", Percent: 50}, {Name: "Save", Percent: 50}}
	if _, err := env.families.UpdatePaymentCategories(env.familyID, cats); err != nil {
		t.Fatalf("update categories: %v", err)
	}
	date, _ := model.ParseDate(testDate)
	if _, err := env.commissions.Create(model.NewCommission{
		FamilyID:   env.familyID,
		PersonID:   env.personID,
		ChoreName:  "Raking",
		Date:       date,
		BaseAmount: decimal.RequireFromString("1.25"),
	}); err != nil {
		t.Fatalf("create commission: %v", err)
	}

	r := env.request(http.MethodGet, "/api/families/1/payments/1", "")
	r.SetPathValue("personID", strconv.FormatInt(env.personID, 10))
	r.Header.Set("Accept-Language", "en-US,en;q=0.9")
	rec := httptest.NewRecorder()
	env.paymentHandler(t).Get(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var out struct {
		Locale             string          `json:"locale"`
		AmountDue          decimal.Decimal `json:"amount_due"`
		AmountDueFormatted string          `json:"amount_due_formatted"`
		Leftover           decimal.Decimal `json:"leftover"`
		Payable            bool            `json:"payable"`
		Lines              []struct {
			Name   string          `json:"name"`
			Amount decimal.Decimal `json:"amount"`
		} `json:"lines"`
		Outstanding []json.RawMessage `json:"outstanding"`
	}
	decodeBody(t, rec, &out)

	if out.Locale != "en-US" {
		t.Errorf("locale = %q, want en-US", out.Locale)
	}
	if !out.AmountDue.Equal(decimal.RequireFromString("1.25")) {
		t.Errorf("amount due = %s, want 1.25", out.AmountDue)
	}
	if !strings.Contains(out.AmountDueFormatted, "1.25") {
		t.Errorf("formatted = %q, want it to contain 1.25", out.AmountDueFormatted)
	}
	if !out.Payable {
		t.Error("payable = false, want true")
	}
	if len(out.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(out.Lines))
	}
	for _, l := range out.Lines {
		if !l.Amount.Equal(decimal.RequireFromString("0.62")) {
			t.Errorf("%s = %s, want 0.62", l.Name, l.Amount)
		}
	}
	if !out.Leftover.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("leftover = %s, want 0.01", out.Leftover)
	}
	if len(out.Outstanding) != 1 {
		t.Errorf("outstanding = %d, want 1", len(out.Outstanding))
	}
}

func TestPaymentUnknownPerson(t *testing.T) {
	env := setupHandlerTest(t)
	r := env.request(http.MethodGet, "/api/families/1/payments/9999", "")
	r.SetPathValue("personID", "9999")
	rec := httptest.NewRecorder()
	env.paymentHandler(t).Get(rec, r)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCommissionBonusAndDelete(t *testing.T) {
	env := setupHandlerTest(t)
	h := NewCommissionHandler(env.commissions, env.people, env.chores, nil, time.UTC, env.logger)

	body := `{"person_id":` + strconv.FormatInt(env.personID, 10) + `,"chore_name":"Raking","amount":"2.50","date":"` + testDate + `"}`
	rec := httptest.NewRecorder()
	h.CreateBonus(rec, env.request(http.MethodPost, "/api/families/1/commissions", body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created model.Commission
	decodeBody(t, rec, &created)
	if created.ChoreName != "Raking" || !created.FinalAmount.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("commission = %s/%s, want Raking/2.5", created.ChoreName, created.FinalAmount)
	}

	// A bonus for a stored chore takes the chore's reward and is unique per day.
	laundry, err := env.chores.Create(env.familyID, "Laundry", decimal.RequireFromString("3"))
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	body = `{"person_id":` + strconv.FormatInt(env.personID, 10) + `,"chore_id":` + strconv.FormatInt(laundry.ID, 10) + `,"date":"` + testDate + `"}`
	rec = httptest.NewRecorder()
	h.CreateBonus(rec, env.request(http.MethodPost, "/api/families/1/commissions", body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("chore bonus status = %d, body %s", rec.Code, rec.Body.String())
	}
	var choreBonus model.Commission
	decodeBody(t, rec, &choreBonus)
	if choreBonus.ChoreName != "Laundry" || !choreBonus.FinalAmount.Equal(decimal.RequireFromString("3")) {
		t.Errorf("chore bonus = %s/%s, want Laundry/3", choreBonus.ChoreName, choreBonus.FinalAmount)
	}
	rec = httptest.NewRecorder()
	h.CreateBonus(rec, env.request(http.MethodPost, "/api/families/1/commissions", body))
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want %d", rec.Code, http.StatusConflict)
	}

	// Bonuses show on the chart for their date next to the scheduled chore.
	chartRec := httptest.NewRecorder()
	env.chartHandler().Get(chartRec, env.request(http.MethodGet, "/api/families/1/chart?date="+testDate, ""))
	var c chartBody
	decodeBody(t, chartRec, &c)
	if len(c.Entries) != 3 {
		t.Errorf("chart entries = %d, want 3", len(c.Entries))
	}

	del := env.request(http.MethodDelete, "/api/families/1/commissions/1", "")
	del.SetPathValue("id", strconv.FormatInt(created.ID, 10))
	rec = httptest.NewRecorder()
	h.Delete(rec, del)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec = httptest.NewRecorder()
	h.Delete(rec, del)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCommissionDeletePaid(t *testing.T) {
	env := setupHandlerTest(t)
	date, _ := model.ParseDate(testDate)
	c, err := env.commissions.Create(model.NewCommission{
		FamilyID:   env.familyID,
		PersonID:   env.personID,
		ChoreName:  "Raking",
		Date:       date,
		BaseAmount: decimal.RequireFromString("1"),
	})
	if err != nil {
		t.Fatalf("create commission: %v", err)
	}
	if _, _, err := env.commissions.MarkPaid(env.familyID, env.personID, time.Now()); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	h := NewCommissionHandler(env.commissions, env.people, env.chores, nil, time.UTC, env.logger)
	r := env.request(http.MethodDelete, "/api/families/1/commissions/1", "")
	r.SetPathValue("id", strconv.FormatInt(c.ID, 10))
	rec := httptest.NewRecorder()
	h.Delete(rec, r)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestCommissionExport(t *testing.T) {
	env := setupHandlerTest(t)
	h := env.chartHandler()
	body := `{"date":"` + testDate + `","assignment_id":` + strconv.FormatInt(env.assignmentID, 10) + `}`
	if rec, _ := env.toggle(t, h, body); rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", rec.Code)
	}

	ch := NewCommissionHandler(env.commissions, env.people, env.chores, nil, time.UTC, env.logger)
	rec := httptest.NewRecorder()
	ch.Export(rec, env.request(http.MethodGet, "/api/families/1/commissions/export", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(exportSheet)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0][0] != "Date" || rows[1][0] != testDate {
		t.Errorf("first column = %q/%q, want Date/%s", rows[0][0], rows[1][0], testDate)
	}
	if rows[1][1] != "Ann" || rows[1][2] != "Dishes" {
		t.Errorf("row = %v, want Ann and Dishes", rows[1])
	}
}

func TestUpdatePaymentCategoriesValidation(t *testing.T) {
	env := setupHandlerTest(t)
	h := NewFamilyHandler(env.families, nil, env.logger)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"categories":[{"name":"Spend","percent":70},{"name":"Save","percent":30}]}`, http.StatusOK},
		{"empty", `{"categories":[]}`, http.StatusOK},
		{"bad sum", `{"categories":[{"name":"Spend","percent":70}]}`, http.StatusBadRequest},
		{"blank name", `{"categories":[{"name":" ","percent":100}]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := env.request(http.MethodPut, "/api/families/1/payment-categories", tt.body)
			rec := httptest.NewRecorder()
			h.UpdatePaymentCategories(rec, r)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := setupHandlerTest(t)
	h := NewAuthHandler(env.users, env.sessions, nil, false, env.logger)

	post := func(fn http.HandlerFunc, body string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)).WithContext(context.Background())
		rec := httptest.NewRecorder()
		fn(rec, r)
		return rec
	}

	rec := post(h.Register, `{"email":"Kid@Example.com","display_name":"Kid","password":"longenough"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("register did not set a session cookie")
	}

	if rec := post(h.Register, `{"email":"kid@example.com","display_name":"Kid","password":"longenough"}`); rec.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if rec := post(h.Register, `{"email":"short@example.com","display_name":"Kid","password":"short"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("short password status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if rec := post(h.Login, `{"email":"kid@example.com","password":"wrongpassword"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if rec := post(h.Login, `{"email":"nobody@example.com","password":"longenough"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown user status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if rec := post(h.Login, `{"email":"KID@example.com","password":"longenough"}`); rec.Code != http.StatusOK {
		t.Errorf("login status = %d, want %d", rec.Code, http.StatusOK)
	}
}

type recordingHub struct {
	msgs []websocket.Message
}

func (h *recordingHub) Broadcast(familyID int64, msg websocket.Message) {
	h.msgs = append(h.msgs, msg)
}

func TestPayWithNothingDueIsNoop(t *testing.T) {
	env := setupHandlerTest(t)
	free, err := env.chores.Create(env.familyID, "Make bed", decimal.RequireFromString("0.00"))
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	a, err := env.assignments.Create(env.familyID, env.personID, free.ID, model.Monday, nil)
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}

	hub := &recordingHub{}
	ph := env.paymentHandler(t)
	ph.broadcaster = broadcaster{hub: hub}
	pay := func() payResponse {
		t.Helper()
		r := env.request(http.MethodPost, "/api/families/1/people/1/payment", "")
		r.SetPathValue("personID", strconv.FormatInt(env.personID, 10))
		rec := httptest.NewRecorder()
		ph.Pay(rec, r)
		if rec.Code != http.StatusOK {
			t.Fatalf("pay status = %d, body %s", rec.Code, rec.Body.String())
		}
		var out payResponse
		decodeBody(t, rec, &out)
		return out
	}

	// Nothing recorded at all.
	if out := pay(); out.Paid != 0 || !out.Amount.IsZero() {
		t.Errorf("empty pay = %d/%s, want 0/0", out.Paid, out.Amount)
	}

	// Only a zero-reward chore recorded.
	h := env.chartHandler()
	body := `{"date":"` + testDate + `","assignment_id":` + strconv.FormatInt(a.ID, 10) + `}`
	rec, out := env.toggle(t, h, body)
	if rec.Code != http.StatusOK || out.Action != "create" || out.Commission == nil {
		t.Fatalf("toggle = %d/%q, want create", rec.Code, out.Action)
	}
	commissionID := out.Commission.ID

	if got := pay(); got.Paid != 0 || !got.Amount.IsZero() {
		t.Errorf("zero-balance pay = %d/%s, want 0/0", got.Paid, got.Amount)
	}
	if len(hub.msgs) != 0 {
		t.Errorf("broadcasts = %v, want none", hub.msgs)
	}

	c, err := env.commissions.GetByID(env.familyID, commissionID)
	if err != nil || c == nil {
		t.Fatalf("get commission: %v", err)
	}
	if c.IsPaid() {
		t.Error("zero-balance commission was marked paid")
	}

	rec, out = env.toggle(t, h, body)
	if rec.Code != http.StatusOK || out.Action != "delete" {
		t.Errorf("toggle after pay = %d/%q, want delete", rec.Code, out.Action)
	}

	// A real balance is paid and announced once.
	if rec, _ := env.toggle(t, h, `{"date":"`+testDate+`","assignment_id":`+strconv.FormatInt(env.assignmentID, 10)+`}`); rec.Code != http.StatusOK {
		t.Fatalf("toggle dishes = %d", rec.Code)
	}
	if got := pay(); got.Paid != 1 || !got.Amount.Equal(decimal.RequireFromString("1.25")) {
		t.Errorf("pay = %d/%s, want 1/1.25", got.Paid, got.Amount)
	}
	if len(hub.msgs) != 1 || hub.msgs[0].Type != "payment_paid" {
		t.Errorf("broadcasts = %v, want one payment_paid", hub.msgs)
	}
}

// staleWriter removes the commission before deleting it, as a concurrent
// toggle that got there first would.
type staleWriter struct{ *store.CommissionStore }

func (w staleWriter) Delete(familyID, id int64) error {
	if err := w.CommissionStore.Delete(familyID, id); err != nil {
		return err
	}
	return w.CommissionStore.Delete(familyID, id)
}

func TestChartToggleAlreadyDeleted(t *testing.T) {
	env := setupHandlerTest(t)
	hub := &recordingHub{}
	h := env.chartHandler()
	h.broadcaster = broadcaster{hub: hub}
	body := `{"date":"` + testDate + `","assignment_id":` + strconv.FormatInt(env.assignmentID, 10) + `}`
	if rec, _ := env.toggle(t, h, body); rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", rec.Code)
	}
	hub.msgs = nil

	h.writer = staleWriter{env.commissions}
	rec, out := env.toggle(t, h, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d, body %s", rec.Code, rec.Body.String())
	}
	if out.Action != "none" {
		t.Errorf("action = %q, want none", out.Action)
	}
	if len(out.Chart.Entries) != 1 || out.Chart.Entries[0].IsCompleted {
		t.Errorf("chart = %+v, want one open entry", out.Chart.Entries)
	}
	if len(hub.msgs) != 0 {
		t.Errorf("broadcasts = %v, want none", hub.msgs)
	}
}
