package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/domain/interfaces"
	"github.com/secmon-lab/vulnapproval/pkg/usecase"
	"github.com/secmon-lab/vulnapproval/pkg/utils/errutil"
	"github.com/secmon-lab/vulnapproval/pkg/utils/safe"
)

// envelope wraps every response body
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// errorKind maps an error to its HTTP status and the kind reported to clients
type errorKind struct {
	err    error
	kind   string
	status int
}

var errorKinds = []errorKind{
	{usecase.ErrInvalidArgument, "invalid_argument", http.StatusBadRequest},
	{usecase.ErrApprovalNotFound, "approval_not_found", http.StatusNotFound},
	{usecase.ErrVulnerabilityNotFound, "vulnerability_not_found", http.StatusNotFound},
	{usecase.ErrAlreadyAssigned, "already_assigned", http.StatusConflict},
	{usecase.ErrVulnerabilityExists, "vulnerability_exists", http.StatusConflict},
	{usecase.ErrInvalidTransition, "invalid_transition", http.StatusConflict},
	{usecase.ErrNotAMember, "not_a_member", http.StatusPreconditionFailed},
	{usecase.ErrMixedSource, "mixed_source", http.StatusUnprocessableEntity},
	{usecase.ErrAlreadyClosed, "already_closed", http.StatusLocked},
	{interfaces.ErrStoreUnavailable, "store_unavailable", http.StatusServiceUnavailable},
	{interfaces.ErrTransactionFailed, "transaction_failed", http.StatusServiceUnavailable},
}

func classifyError(err error) (string, int) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind, k.status
		}
	}
	return "internal", http.StatusInternalServerError
}

// errorData is the data part of an error response: the kind plus the values
// attached to the error, such as offending vulnerability IDs
func errorData(err error, kind string, status int) map[string]any {
	data := map[string]any{"kind": kind}
	if status == http.StatusInternalServerError {
		return data
	}
	if ge := goerr.Unwrap(err); ge != nil {
		for k, v := range ge.Values() {
			if k == "op" {
				continue
			}
			data[k] = v
		}
	}
	return data
}

func writeResponse(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	body, err := json.Marshal(envelope{Code: status, Message: message, Data: data})
	if err != nil {
		errutil.HandleHTTP(r.Context(), goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		http.Error(w, `{"code":500,"message":"internal error","data":null}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(r.Context(), w, body)
}

func writeOK(w http.ResponseWriter, r *http.Request, data any) {
	writeResponse(w, r, http.StatusOK, "success", data)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind, status := classifyError(err)
	errutil.HandleHTTP(r.Context(), err, status)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	writeResponse(w, r, status, message, errorData(err, kind, status))
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return goerr.Wrap(usecase.ErrInvalidArgument, "malformed request body", goerr.V("reason", err.Error()))
	}
	return nil
}
