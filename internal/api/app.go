// Package api exposes the procurement workflow over REST (chi) and MCP.
package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/procura/internal/rfp"
	"github.com/kalambet/procura/internal/storage"
	"github.com/kalambet/procura/internal/workflow"
)

// VendorAdder registers vendors.
type VendorAdder interface {
	Add(v rfp.Vendor) (rfp.Vendor, error)
}

// Dispatcher queues RFP deliveries instead of sending them inline, and
// re-scores proposals after their RFP is edited.
type Dispatcher interface {
	Dispatch(rfpID string, vendorRefs []string) (string, error)
	Evaluate(proposalID string) (string, error)
}

type AppDeps struct {
	Service *workflow.Service
	Vendors VendorAdder
	Queue   Dispatcher // optional; if nil, sends run inline
	Token   string
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/rfps", handleListRFPs(deps))
		r.Get("/rfps/{id}", handleGetRFP(deps))
		r.Patch("/rfps/{id}", handlePatchRFP(deps))
		r.Post("/rfps/{id}/send", handleSendRFP(deps))
		r.Post("/rfps/{id}/close", handleCloseRFP(deps))
		r.Get("/rfps/{id}/proposals", handleListProposals(deps))
		r.Get("/rfps/{id}/dispatches", handleListDispatches(deps))
		r.Get("/rfps/{id}/comparison", handleCompare(deps))

		r.Get("/proposals/{id}", handleGetProposal(deps))
		r.Post("/proposals/{id}/evaluate", handleEvaluate(deps))

		r.Get("/vendors", handleListVendors(deps))
		r.Post("/vendors", handleAddVendor(deps))

		r.Post("/chat", handleChat(deps))
		r.Get("/conversations/{id}/messages", handleListMessages(deps))

		r.Post("/inbox/check", handleCheckInbox(deps))
	})
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleListRFPs(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		rfps, err := deps.Service.Store().ListRFPs(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list rfps: %v", err)
			return
		}
		if rfps == nil {
			rfps = []rfp.RFP{}
		}
		writeJSON(w, http.StatusOK, rfps)
	}
}

func handleGetRFP(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got, err := deps.Service.Store().GetRFP(chi.URLParam(r, "id"))
		if err != nil {
			failure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, got)
	}
}

func handlePatchRFP(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch workflow.RFPPatch
		if !decodeBody(w, r, &patch) {
			return
		}
		updated, err := deps.Service.UpdateRFP(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			failure(w, err)
			return
		}
		if deps.Queue != nil && (patch.Budget != nil || patch.Requirements != nil) {
			rescore(deps, updated.ID)
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// rescore queues a fresh evaluation of every proposal for an RFP.
func rescore(deps AppDeps, rfpID string) {
	proposals, err := deps.Service.Store().ListProposals(rfpID)
	if err != nil {
		slog.Warn("listing proposals to rescore", "rfp_id", rfpID, "error", err)
		return
	}
	for _, p := range proposals {
		if _, err := deps.Queue.Evaluate(p.ID); err != nil {
			slog.Warn("queueing evaluation", "proposal_id", p.ID, "error", err)
		}
	}
}

type sendRequest struct {
	Vendors []string `json:"vendors"`
}

func handleSendRFP(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if len(req.Vendors) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "vendors is required")
			return
		}
		id := chi.URLParam(r, "id")

		if deps.Queue != nil {
			if _, err := deps.Service.Store().GetRFP(id); err != nil {
				failure(w, err)
				return
			}
			jobID, err := deps.Queue.Dispatch(id, req.Vendors)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue delivery: %v", err)
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "queued"})
			return
		}

		res, err := deps.Service.SendRFP(r.Context(), id, req.Vendors)
		if err != nil && len(res.Failed) == 0 {
			failure(w, err)
			return
		}
		if err != nil {
			writeJSON(w, http.StatusBadGateway, res)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleCloseRFP(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Service.CloseRFP(r.Context(), chi.URLParam(r, "id")); err != nil {
			failure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": string(rfp.StatusClosed)})
	}
}

func handleListProposals(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := deps.Service.Store().GetRFP(id); err != nil {
			failure(w, err)
			return
		}
		proposals, err := deps.Service.Store().ListProposals(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list proposals: %v", err)
			return
		}
		if proposals == nil {
			proposals = []rfp.Proposal{}
		}
		writeJSON(w, http.StatusOK, proposals)
	}
}

func handleListDispatches(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds, err := deps.Service.Store().ListDispatches(chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list dispatches: %v", err)
			return
		}
		if ds == nil {
			ds = []storage.Dispatch{}
		}
		writeJSON(w, http.StatusOK, ds)
	}
}

func handleCompare(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
		res, err := deps.Service.Compare(r.Context(), chi.URLParam(r, "id"), force)
		if err != nil {
			failure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleGetProposal(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Service.Store().GetProposal(chi.URLParam(r, "id"))
		if err != nil {
			failure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleEvaluate(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eval, err := deps.Service.EvaluateProposal(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			failure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, eval)
	}
}

func handleListVendors(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vs, err := deps.Service.Vendors().List()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list vendors: %v", err)
			return
		}
		if vs == nil {
			vs = []rfp.Vendor{}
		}
		writeJSON(w, http.StatusOK, vs)
	}
}

func handleAddVendor(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var v rfp.Vendor
		if !decodeBody(w, r, &v) {
			return
		}
		created, err := deps.Vendors.Add(v)
		if err != nil {
			failure(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

func handleChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := deps.Service.Chat(r.Context(), req.ConversationID, req.Message)
		if err != nil {
			failure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleListMessages(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := deps.Service.Store().GetConversation(id); err != nil {
			failure(w, err)
			return
		}
		msgs, err := deps.Service.Store().ListMessages(id, parseIntParam(r, "limit", 50, 500))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list messages: %v", err)
			return
		}
		if msgs == nil {
			msgs = []storage.Message{}
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func handleCheckInbox(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := deps.Service.CheckInbox(r.Context())
		if err != nil {
			failure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
