package callbackresumer

import (
	"encoding/json"
	"net/http"
)

type callbackReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// HTTPHandler adapts Resumer.Handle to the /lpt/callback endpoint. A
// callback for an unknown or already-terminal task still gets {ok:true}:
// workers retry on transport errors only, and idempotency wins over
// strictness.
func (r *Resumer) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var cb Callback
		if err := json.NewDecoder(req.Body).Decode(&cb); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(callbackReply{OK: false, Error: "invalid callback payload"})
			return
		}
		if cb.TaskID == "" || cb.ThreadKey == "" || cb.UserID == "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(callbackReply{OK: false, Error: "task_id, thread_key and user_id are required"})
			return
		}

		if err := r.Handle(req.Context(), cb); err != nil {
			r.logger.Error("callback handling failed", "task_id", cb.TaskID, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(callbackReply{OK: false, Error: "internal error"})
			return
		}

		_ = json.NewEncoder(w).Encode(callbackReply{OK: true})
	}
}
