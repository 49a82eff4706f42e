package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/websocket"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// It writes the 400 response itself and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": fields})
			return false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func parseIDParam(r *http.Request) (int64, error) {
	return parsePathID(r, "id")
}

func parsePathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

// parseDateQuery reads ?date=YYYY-MM-DD, defaulting to today in loc.
func parseDateQuery(r *http.Request, now time.Time, loc *time.Location) (civil.Date, error) {
	s := strings.TrimSpace(r.URL.Query().Get("date"))
	if s == "" {
		return model.Today(now, loc), nil
	}
	return model.ParseDate(s)
}

// notifier is the part of the websocket hub handlers use.
type notifier interface {
	Broadcast(familyID int64, msg websocket.Message)
}

// broadcaster is embedded by handlers that notify live clients.
type broadcaster struct {
	hub notifier
}

func newBroadcaster(hub *websocket.Hub) broadcaster {
	if hub == nil {
		return broadcaster{}
	}
	return broadcaster{hub: hub}
}

func (b broadcaster) broadcast(familyID int64, msg websocket.Message) {
	if b.hub != nil {
		b.hub.Broadcast(familyID, msg)
	}
}
