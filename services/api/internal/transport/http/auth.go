package http

import "net/http"

// actorHeader carries the authenticated principal's id, set by the auth
// layer in front of this service.
const actorHeader = "X-Actor-ID"

func actorID(r *http.Request) string {
	return r.Header.Get(actorHeader)
}

func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := actorID(r)
	if id == "" {
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, "missing principal")
		return "", false
	}
	return id, true
}
