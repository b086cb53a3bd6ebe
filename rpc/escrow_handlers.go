package rpc

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/erikrakuscek/escrow-ethereum/core/types"
	"github.com/erikrakuscek/escrow-ethereum/observability"
	"github.com/erikrakuscek/escrow-ethereum/rpc/modules"
)

func (s *Server) handleSubmitCall(w http.ResponseWriter, r *http.Request, req *RPCRequest) int {
	if err := s.auth.authenticate(r); err != nil {
		observability.ModuleMetrics().RecordThrottle(metricsModule, "unauthenticated")
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized", err.Error())
		return codeUnauthorized
	}
	// Throttle before decoding the call or recovering its signer.
	source := clientSource(r)
	if !s.limiter.allow(source, time.Now()) {
		observability.ModuleMetrics().RecordThrottle(metricsModule, "rate_limit")
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "call rate limit exceeded", source)
		return codeRateLimited
	}
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "signed call parameter required", nil)
		return codeInvalidParams
	}
	var call types.Call
	if err := json.Unmarshal(req.Params[0], &call); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid call format", err.Error())
		return codeInvalidParams
	}
	from, err := call.From()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid call signature", err.Error())
		return codeInvalidParams
	}

	receipt, err := s.node.SubmitCall(r.Context(), &call)
	if err != nil {
		modErr := modules.MapError(err)
		s.logger.Info("call rejected",
			slog.String("requestId", w.Header().Get(requestIDHeader)),
			slog.String("type", call.Type.String()),
			slog.String("caller", from.Hex()),
			slog.Int("code", modErr.Code),
			slog.Any("error", err))
		writeModuleError(w, req.ID, modErr)
		return modErr.Code
	}
	writeResult(w, req.ID, receipt)
	return 0
}
