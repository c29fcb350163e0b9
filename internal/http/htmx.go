package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
)

// htmx request and response headers.
const (
	hxRequest  = "Hx-Request"
	hxBoosted  = "Hx-Boosted"
	hxRedirect = "Hx-Redirect"
	hxTrigger  = "Hx-Trigger"
)

func headerTrue(r *http.Request, name string) bool {
	return strings.EqualFold(r.Header.Get(name), "true")
}

// IsHTMX reports whether htmx issued the request.
func IsHTMX(r *http.Request) bool { return headerTrue(r, hxRequest) }

// IsBoosted reports whether the request is an hx-boost navigation.
func IsBoosted(r *http.Request) bool { return headerTrue(r, hxBoosted) }

// WantsPartial is true when only the main fragment should be rendered.
// Boosted navigations swap the whole body, so they get the layout too.
func WantsPartial(r *http.Request) bool {
	return IsHTMX(r) && !IsBoosted(r)
}

// redirectHX asks htmx to do a full browser navigation to location and ends
// the response with 204.
func redirectHX(w http.ResponseWriter, location string) {
	w.Header().Set(hxRedirect, location)
	w.WriteHeader(http.StatusNoContent)
}

// addTrigger merges event into the Hx-Trigger header so several events can be
// raised by one response. A nil payload is sent as true.
func addTrigger(w http.ResponseWriter, event string, payload any) {
	events := map[string]any{}
	if prev := w.Header().Get(hxTrigger); prev != "" {
		_ = json.Unmarshal([]byte(prev), &events)
	}
	if payload == nil {
		payload = true
	}
	events[event] = payload

	b, err := json.Marshal(events)
	if err != nil {
		return
	}
	w.Header().Set(hxTrigger, string(b))
}

// triggerToast raises the layout's showToast event. kind is success or error.
func triggerToast(w http.ResponseWriter, message, kind string) {
	addTrigger(w, "showToast", map[string]string{"message": message, "type": kind})
}
