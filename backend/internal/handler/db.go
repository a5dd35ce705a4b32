package handler

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/filmzi/filelink/backend/internal/service"
	"github.com/filmzi/filelink/shared/api"
	"github.com/filmzi/filelink/shared/domain"
	"github.com/filmzi/filelink/shared/utils"
	"github.com/go-chi/chi/v5"
)

// DB serves POST /db/{action}, the backup surface over the mapping stores.
func (h *Handler) DB(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	switch chi.URLParam(r, "action") {
	case "save":
		h.saveMapping(w, r)
	case "get":
		h.getMapping(w, r)
	case "list":
		h.listMappings(w, r)
	case "cleanup":
		h.cleanupMappings(w, r)
	default:
		writeJSONError(w, http.StatusBadRequest, "Invalid action")
	}
}

func (h *Handler) saveMapping(w http.ResponseWriter, r *http.Request) {
	var body api.SaveMappingRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		writeJSONErr(w, err)
		return
	}
	if err := service.ValidateShortId(body.ShortId, h.cfg.Public.MinShortIdLength); err != nil {
		writeJSONErr(w, err)
		return
	}

	saved, err := h.backup.Save(r.Context(), body.Mapping())
	if err != nil {
		writeJSONErr(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.SaveMappingResponse{
		Success:      true,
		SavedEntries: saved,
		MappingId:    body.ShortId,
	})
}

func (h *Handler) getMapping(w http.ResponseWriter, r *http.Request) {
	var body api.GetMappingRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		writeJSONErr(w, err)
		return
	}
	if err := service.ValidateShortId(body.ShortId, h.cfg.Public.MinShortIdLength); err != nil {
		writeJSONErr(w, err)
		return
	}

	m, err := h.backup.Get(r.Context(), domain.ShortId(body.ShortId))
	if err != nil {
		writeJSONErr(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.GetMappingResponse{Success: true, Mapping: api.NewMappingResponse(m)})
}

func (h *Handler) listMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.backup.List(r.Context())
	if err != nil {
		writeJSONErr(w, err)
		return
	}

	response := api.ListMappingsResponse{
		Success:       true,
		TotalMappings: len(mappings),
		Mappings:      make([]api.MappingResponse, len(mappings)),
	}
	for i, m := range mappings {
		response.Mappings[i] = api.NewMappingResponse(m)
	}
	utils.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) cleanupMappings(w http.ResponseWriter, r *http.Request) {
	var body api.CleanupRequest
	if err := decodeOptional(r.Body, &body); err != nil {
		writeJSONErr(w, err)
		return
	}

	report, err := h.backup.Cleanup(r.Context(), body.DaysOld)
	if err != nil {
		writeJSONErr(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.CleanupResponse{
		Success:         true,
		Message:         fmt.Sprintf("Cleanup is disabled. %d mappings are older than the cutoff, nothing was deleted.", report.Candidates),
		CutoffTimestamp: report.Cutoff.Unix(),
		Cutoff:          report.Cutoff,
		Candidates:      report.Candidates,
	})
}

// decodeOptional accepts an empty body as the zero request.
func decodeOptional(r io.ReadCloser, body any) error {
	data, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}
	return utils.DecodeValidate(io.NopCloser(strings.NewReader(string(data))), body)
}

func writeJSONErr(w http.ResponseWriter, err error) {
	writeJSONError(w, utils.StatusOf(err), utils.PublicMessage(err))
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	utils.WriteJSON(w, status, api.ErrorResponse{Success: false, Error: message})
}
