package harness

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mockdroid/mockdroid/internal/recorder"
)

// Handler builds the chi router for the full HTTP surface.
func (h *Harness) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/devices", h.listDevices)

	r.Route("/device/{deviceID}", func(r chi.Router) {
		r.Post("/tap", h.tap)
		r.Post("/double_tap", h.doubleTap)
		r.Post("/long_press", h.longPress)
		r.Post("/swipe", h.swipe)
		r.Post("/type_text", h.typeText)
		r.Post("/clear_text", h.clearText)
		r.Post("/back", h.back)
		r.Post("/home", h.home)
		r.Post("/launch_app", h.launchApp)
		r.Post("/screenshot", h.screenshot)
		r.Post("/detect_keyboard", h.detectKeyboard)
		r.Post("/restore_keyboard", h.restoreKeyboard)
		r.Get("/current_app", h.currentApp)
	})

	r.Route("/test", func(r chi.Router) {
		r.Get("/commands", h.getCommands)
		r.Get("/commands/actions", h.getCommandActions)
		r.Post("/reset", h.resetCommands)
		r.Post("/load_scenario", h.loadScenario)
		r.Get("/state", h.getState)
		r.Get("/expect", h.expect)
	})

	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(h.metrics.registry, promhttp.HandlerOpts{}))

	return r
}

// --- request bodies ---
//
// Required fields are pointers so a missing field is distinguishable
// from a zero value and can be rejected with a client error.

type tapRequest struct {
	X     *int     `json:"x"`
	Y     *int     `json:"y"`
	Delay *float64 `json:"delay"`
}

type longPressRequest struct {
	X          *int     `json:"x"`
	Y          *int     `json:"y"`
	DurationMS *int     `json:"duration_ms"`
	Delay      *float64 `json:"delay"`
}

const defaultLongPressMS = 3000

type swipeRequest struct {
	StartX     *int     `json:"start_x"`
	StartY     *int     `json:"start_y"`
	EndX       *int     `json:"end_x"`
	EndY       *int     `json:"end_y"`
	DurationMS *int     `json:"duration_ms"`
	Delay      *float64 `json:"delay"`
}

type typeTextRequest struct {
	Text *string `json:"text"`
}

type launchAppRequest struct {
	AppName *string  `json:"app_name"`
	Delay   *float64 `json:"delay"`
}

type screenshotRequest struct {
	Timeout *int `json:"timeout"`
}

const defaultScreenshotTimeout = 10

type delayRequest struct {
	Delay *float64 `json:"delay"`
}

type restoreKeyboardRequest struct {
	IME *string `json:"ime"`
}

type loadScenarioRequest struct {
	ScenarioPath *string `json:"scenario_path"`
}

// --- response bodies ---

type okResponse struct {
	Status string `json:"status"`
}

type launchAppResponse struct {
	Status  string `json:"status"`
	Success bool   `json:"success"`
}

type screenshotResponse struct {
	Base64      string `json:"base64"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	IsSensitive bool   `json:"is_sensitive"`
}

type currentAppResponse struct {
	AppName string `json:"app_name"`
}

type keyboardResponse struct {
	OriginalIME string `json:"original_ime"`
}

type deviceDescriptor struct {
	DeviceID       string `json:"device_id"`
	Status         string `json:"status"`
	Model          string `json:"model"`
	Platform       string `json:"platform"`
	ConnectionType string `json:"connection_type"`
}

type resetResponse struct {
	Status          string `json:"status"`
	CommandsCleared bool   `json:"commands_cleared"`
}

type loadScenarioResponse struct {
	Status   string   `json:"status"`
	Scenario string   `json:"scenario"`
	States   []string `json:"states"`
	Session  string   `json:"session"`
}

type stateResponse struct {
	CurrentState *string  `json:"current_state"`
	History      []string `json:"history"`
}

type expectResponse struct {
	Match    bool     `json:"match"`
	Expected []string `json:"expected"`
	Actual   []string `json:"actual"`
	Message  string   `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// --- device discovery ---

func (h *Harness) listDevices(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, []deviceDescriptor{{
		DeviceID:       DeviceID,
		Status:         "online",
		Model:          deviceModel,
		Platform:       devicePlatform,
		ConnectionType: deviceConnection,
	}})
}

// --- motion verbs ---

func (h *Harness) tap(w http.ResponseWriter, r *http.Request) {
	h.tapLike(w, r, "tap")
}

func (h *Harness) doubleTap(w http.ResponseWriter, r *http.Request) {
	h.tapLike(w, r, "double_tap")
}

// tapLike records a tap-family verb and dispatches it as a single tap
// event. Double taps collapse into one tap for transition purposes.
func (h *Harness) tapLike(w http.ResponseWriter, r *http.Request, action string) {
	var req tapRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.X == nil || req.Y == nil {
		respondError(w, http.StatusBadRequest, "%s: x and y are required", action)
		return
	}

	params := map[string]any{"x": *req.X, "y": *req.Y}
	if req.Delay != nil {
		params["delay"] = *req.Delay
	}
	h.record(action, chi.URLParam(r, "deviceID"), params)

	if eng := h.engineRef(); eng != nil {
		h.dispatchOutcome(action, eng.HandleTap(*req.X, *req.Y))
	}
	respondJSON(w, http.StatusOK, okResponse{Status: "ok"})
}

func (h *Harness) longPress(w http.ResponseWriter, r *http.Request) {
	var req longPressRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.X == nil || req.Y == nil {
		respondError(w, http.StatusBadRequest, "long_press: x and y are required")
		return
	}

	duration := defaultLongPressMS
	if req.DurationMS != nil {
		duration = *req.DurationMS
	}
	params := map[string]any{"x": *req.X, "y": *req.Y, "duration_ms": duration}
	if req.Delay != nil {
		params["delay"] = *req.Delay
	}
	h.record("long_press", chi.URLParam(r, "deviceID"), params)

	// A long press is a tap event for state-transition purposes.
	if eng := h.engineRef(); eng != nil {
		h.dispatchOutcome("long_press", eng.HandleTap(*req.X, *req.Y))
	}
	respondJSON(w, http.StatusOK, okResponse{Status: "ok"})
}

func (h *Harness) swipe(w http.ResponseWriter, r *http.Request) {
	var req swipeRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.StartX == nil || req.StartY == nil || req.EndX == nil || req.EndY == nil {
		respondError(w, http.StatusBadRequest, "swipe: start_x, start_y, end_x and end_y are required")
		return
	}

	params := map[string]any{
		"start_x": *req.StartX,
		"start_y": *req.StartY,
		"end_x":   *req.EndX,
		"end_y":   *req.EndY,
	}
	if req.DurationMS != nil {
		params["duration_ms"] = *req.DurationMS
	}
	if req.Delay != nil {
		params["delay"] = *req.Delay
	}
	h.record("swipe", chi.URLParam(r, "deviceID"), params)

	if eng := h.engineRef(); eng != nil {
		h.dispatchOutcome("swipe", eng.HandleSwipe(*req.StartX, *req.StartY, *req.EndX, *req.EndY))
	}
	respondJSON(w, http.StatusOK, okResponse{Status: "ok"})
}

// --- recorded-only verbs ---

func (h *Harness) typeText(w http.ResponseWriter, r *http.Request) {
	var req typeTextRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.Text == nil {
		respondError(w, http.StatusBadRequest, "type_text: text is required")
		return
	}

	h.record("type_text", chi.URLParam(r, "deviceID"), map[string]any{"text": *req.Text})
	respondJSON(w, http.StatusOK, okResponse{Status: "ok"})
}

func (h *Harness) clearText(w http.ResponseWriter, r *http.Request) {
	h.record("clear_text", chi.URLParam(r, "deviceID"), nil)
	respondJSON(w, http.StatusOK, okResponse{Status: "ok"})
}

func (h *Harness) back(w http.ResponseWriter, r *http.Request) {
	h.navVerb(w, r, "back")
}

func (h *Harness) home(w http.ResponseWriter, r *http.Request) {
	h.navVerb(w, r, "home")
}

func (h *Harness) navVerb(w http.ResponseWriter, r *http.Request, action string) {
	var req delayRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	var params map[string]any
	if req.Delay != nil {
		params = map[string]any{"delay": *req.Delay}
	}
	h.record(action, chi.URLParam(r, "deviceID"), params)
	respondJSON(w, http.StatusOK, okResponse{Status: "ok"})
}

func (h *Harness) launchApp(w http.ResponseWriter, r *http.Request) {
	var req launchAppRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.AppName == nil {
		respondError(w, http.StatusBadRequest, "launch_app: app_name is required")
		return
	}

	params := map[string]any{"app_name": *req.AppName}
	if req.Delay != nil {
		params["delay"] = *req.Delay
	}
	h.record("launch_app", chi.URLParam(r, "deviceID"), params)

	// No real launch semantics: always succeeds.
	respondJSON(w, http.StatusOK, launchAppResponse{Status: "ok", Success: true})
}

func (h *Harness) detectKeyboard(w http.ResponseWriter, r *http.Request) {
	h.record("detect_keyboard", chi.URLParam(r, "deviceID"), nil)
	respondJSON(w, http.StatusOK, keyboardResponse{OriginalIME: "com.mock.keyboard"})
}

func (h *Harness) restoreKeyboard(w http.ResponseWriter, r *http.Request) {
	var req restoreKeyboardRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	ime := ""
	if req.IME != nil {
		ime = *req.IME
	}
	h.record("restore_keyboard", chi.URLParam(r, "deviceID"), map[string]any{"ime": ime})
	respondJSON(w, http.StatusOK, okResponse{Status: "ok"})
}

// --- state reads ---

func (h *Harness) screenshot(w http.ResponseWriter, r *http.Request) {
	var req screenshotRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	timeout := defaultScreenshotTimeout
	if req.Timeout != nil {
		timeout = *req.Timeout
	}
	h.record("screenshot", chi.URLParam(r, "deviceID"), map[string]any{"timeout": timeout})

	eng := h.engineRef()
	if eng == nil {
		respondJSON(w, http.StatusOK, screenshotResponse{
			Width:  placeholderWidth,
			Height: placeholderHeight,
		})
		return
	}

	shot := eng.CurrentScreenshot()
	respondJSON(w, http.StatusOK, screenshotResponse{
		Base64: base64.StdEncoding.EncodeToString(shot.Bytes),
		Width:  shot.Width,
		Height: shot.Height,
	})
}

func (h *Harness) currentApp(w http.ResponseWriter, r *http.Request) {
	h.record("current_app", chi.URLParam(r, "deviceID"), nil)

	app := placeholderApp
	if eng := h.engineRef(); eng != nil {
		app = eng.CurrentApp()
	}
	respondJSON(w, http.StatusOK, currentAppResponse{AppName: app})
}

// --- test control ---

func (h *Harness) getCommands(w http.ResponseWriter, r *http.Request) {
	log := h.rec.List()
	if log == nil {
		log = []recorder.Record{}
	}
	respondJSON(w, http.StatusOK, log)
}

// getCommandActions returns the simplified view: action name with params
// flattened alongside it.
func (h *Harness) getCommandActions(w http.ResponseWriter, r *http.Request) {
	log := h.rec.List()
	simplified := make([]map[string]any, len(log))
	for i, rec := range log {
		entry := make(map[string]any, len(rec.Params)+1)
		for k, v := range rec.Params {
			entry[k] = v
		}
		entry["action"] = rec.Action
		simplified[i] = entry
	}
	respondJSON(w, http.StatusOK, simplified)
}

func (h *Harness) resetCommands(w http.ResponseWriter, r *http.Request) {
	h.rec.Reset()
	h.logger.Info("command log reset")
	respondJSON(w, http.StatusOK, resetResponse{Status: "reset", CommandsCleared: true})
}

func (h *Harness) loadScenario(w http.ResponseWriter, r *http.Request) {
	var req loadScenarioRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.ScenarioPath == nil || *req.ScenarioPath == "" {
		respondError(w, http.StatusBadRequest, "load_scenario: scenario_path is required")
		return
	}

	states, session, err := h.LoadScenario(*req.ScenarioPath)
	if err != nil {
		// Previous engine, if any, stays active.
		respondError(w, http.StatusBadRequest, "failed to load scenario: %v", err)
		return
	}

	respondJSON(w, http.StatusOK, loadScenarioResponse{
		Status:   "loaded",
		Scenario: *req.ScenarioPath,
		States:   states,
		Session:  session,
	})
}

func (h *Harness) getState(w http.ResponseWriter, r *http.Request) {
	eng := h.engineRef()
	if eng == nil {
		respondJSON(w, http.StatusOK, stateResponse{History: []string{}})
		return
	}

	current, history := eng.State()
	respondJSON(w, http.StatusOK, stateResponse{CurrentState: &current, History: history})
}

// expect compares the recorded action sequence against the caller's
// expectation. It only reports; it never fails and never mutates.
func (h *Harness) expect(w http.ResponseWriter, r *http.Request) {
	expected := []string{}
	if raw := r.URL.Query().Get("actions"); raw != "" {
		for _, a := range strings.Split(raw, ",") {
			expected = append(expected, strings.TrimSpace(a))
		}
	}

	actual := h.rec.Actions()
	match := slices.Equal(expected, actual)

	message := "commands match"
	if !match {
		message = fmt.Sprintf("mismatch: expected %v, got %v", expected, actual)
	}
	respondJSON(w, http.StatusOK, expectResponse{
		Match:    match,
		Expected: expected,
		Actual:   actual,
		Message:  message,
	})
}

// --- helpers ---

// decodeBody decodes a JSON body into dst. An empty body is legal and
// leaves dst at its zero value, so verbs with only optional params can
// be called without a body.
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, format string, args ...any) {
	respondJSON(w, status, errorResponse{Error: fmt.Sprintf(format, args...)})
}
