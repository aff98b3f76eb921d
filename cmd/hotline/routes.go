package main

import (
	"github.com/justinas/alice"
	"net/http"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthy", app.healthy)

	session := alice.New(sessionContext)
	mux.Handle("GET /api/sessions/{id}", session.ThenFunc(app.sessionStatus))
	mux.Handle("GET /api/sessions/{id}/score", session.ThenFunc(app.sessionScore))

	common := alice.New(app.recoverPanic, app.logRequest, secureHeaders)
	return common.Then(mux)
}
