package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mikey-austin/zonectl/internal/adapters/artwork"
	"github.com/mikey-austin/zonectl/internal/core"
	"github.com/mikey-austin/zonectl/pkg/zones"
)

const maxCommandBody = 64 << 10

type handlers struct {
	log  *zap.Logger
	deps Deps
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) listZones(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Service.Zones(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if result.Zones == nil {
		result.Zones = []zones.ZoneSnapshot{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) listPlayers(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Service.Devices(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if result.Devices == nil {
		result.Devices = []core.DeviceSummary{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) getPlayer(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Service.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) getArtwork(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.Service.Player(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	if !p.HasArtwork() {
		writeError(w, http.StatusNotFound, zones.CodeNotFound, "no artwork for "+p.ID())
		return
	}
	res := artwork.Fetch(r.Context(), h.deps.Fetcher, h.deps.Resolver, p.Picture())
	writeJSON(w, http.StatusOK, zones.ArtworkSnapshot{
		PlayerID: p.ID(),
		Ref:      res.Ref,
		Image:    res.Image,
		Fallback: res.Fallback,
		TS:       time.Now().Unix(),
	})
}

// postCommand accepts a command body and fills playerId from the path.
func (h *handlers) postCommand(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cmdType := vars["type"]
	if !strings.HasPrefix(cmdType, "player.") {
		cmdType = "player." + cmdType
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, zones.CodeInvalid, "read body: "+err.Error())
		return
	}
	body := map[string]any{}
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			writeError(w, http.StatusBadRequest, zones.CodeInvalid, "body must be a JSON object")
			return
		}
	}
	body["playerId"] = vars["id"]

	cmd, err := zones.NewCommand(cmdType, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, zones.CodeInvalid, err.Error())
		return
	}
	cmd.ID = h.newID()
	cmd.TS = time.Now().Unix()
	cmd.From = "http"

	result, err := h.deps.Service.Execute(r.Context(), cmd)
	if err != nil {
		h.fail(w, err)
		return
	}
	if h.deps.AfterCommand != nil {
		h.deps.AfterCommand()
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) newID() string {
	if h.deps.IDs == nil {
		return "http"
	}
	return h.deps.IDs.NewID()
}

func (h *handlers) fail(w http.ResponseWriter, err error) {
	code := core.ReplyCodeForError(err)
	status := http.StatusInternalServerError
	switch core.ExitCode(err) {
	case core.ExitUsage:
		status = http.StatusBadRequest
	case core.ExitNotFound:
		status = http.StatusNotFound
	case core.ExitUnsupported:
		status = http.StatusUnprocessableEntity
	case core.ExitUnavailable:
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		h.log.Warn("request failed", zap.Error(err))
	}
	writeError(w, status, code, err.Error())
}
