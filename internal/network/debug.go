package network

import (
	"encoding/json"
	"net/http"

	"github.com/hollowsignal/haunted-console/server/internal/domain/spirit"
	"github.com/hollowsignal/haunted-console/server/internal/engine"
	"github.com/hollowsignal/haunted-console/server/internal/events"
	"github.com/hollowsignal/haunted-console/server/internal/ghost"
	"github.com/hollowsignal/haunted-console/server/internal/infra/storage"
	"github.com/hollowsignal/haunted-console/server/internal/platform/logger"
	"github.com/hollowsignal/haunted-console/server/internal/state"
)

// DebugAPI exposes the hidden developer triggers over HTTP. Mounted
// only when debug hooks are enabled in config.
type DebugAPI struct {
	bus         *events.Bus
	store       *state.Store
	progression *engine.Progression
	gateway     *storage.Gateway
	agent       *ghost.Agent
	logger      *logger.Logger
}

// NewDebugAPI wires the debug surface.
func NewDebugAPI(bus *events.Bus, store *state.Store, prog *engine.Progression, gw *storage.Gateway, agent *ghost.Agent, log *logger.Logger) *DebugAPI {
	return &DebugAPI{
		bus:         bus,
		store:       store,
		progression: prog,
		gateway:     gw,
		agent:       agent,
		logger:      log,
	}
}

// Mount registers the debug routes.
func (d *DebugAPI) Mount(mux *http.ServeMux) {
	mux.HandleFunc("/debug/stage", d.handleStage)
	mux.HandleFunc("/debug/corrupt", d.handleCorrupt)
	mux.HandleFunc("/debug/reset", d.handleReset)
	mux.HandleFunc("/debug/overlay", d.handleOverlay)
	mux.HandleFunc("/debug/state", d.handleState)
}

func (d *DebugAPI) handleStage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Stage *int `json:"stage"`
		Clear bool `json:"clear"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch {
	case req.Clear:
		d.progression.ClearOverride()
		d.logger.Warn("Debug: stage override cleared")
	case req.Stage != nil:
		d.progression.SetStage(*req.Stage)
		d.logger.Warn("Debug: stage forced to %d", *req.Stage)
	default:
		http.Error(w, "stage or clear required", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{"stage": int(d.store.Stage())})
}

func (d *DebugAPI) handleCorrupt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	if err := d.gateway.CorruptSavedRecord(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"corrupted": true})
}

func (d *DebugAPI) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	if err := d.gateway.FullReset(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	d.progression.ClearOverride()
	d.logger.Warn("Debug: full reset executed")
	writeJSON(w, map[string]interface{}{"reset": true})
}

func (d *DebugAPI) handleOverlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	d.bus.Publish(events.UIDebugOverlay, nil)
	writeJSON(w, map[string]interface{}{"overlay": true})
}

func (d *DebugAPI) handleState(w http.ResponseWriter, r *http.Request) {
	type stateView struct {
		Stage          spirit.Stage         `json:"stage"`
		StageName      string               `json:"stage_name"`
		Overridden     bool                 `json:"overridden"`
		Mood           string               `json:"mood"`
		ElapsedSeconds float64              `json:"elapsed_seconds"`
		Personality    spirit.Personality   `json:"personality"`
		FearProfile    spirit.FearProfile   `json:"fear_profile"`
		ScareCount     int                  `json:"scare_count"`
		Scares         []spirit.ScareRecord `json:"scares"`
	}
	count, _ := d.store.Get(state.FieldScareCount).(int)
	writeJSON(w, stateView{
		Stage:          d.store.Stage(),
		StageName:      d.store.Stage().String(),
		Overridden:     d.progression.Overridden(),
		Mood:           d.agent.Mood(),
		ElapsedSeconds: d.store.Elapsed().Seconds(),
		Personality:    d.store.Personality(),
		FearProfile:    d.store.FearProfile(),
		ScareCount:     count,
		Scares:         d.agent.History(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
