package apihttp

import (
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	alerting "voip-monitor/internal/alerting/domain"
	"voip-monitor/internal/audit"
	"voip-monitor/internal/auth"
)

// Deps are the services exposed over HTTP.
type Deps struct {
	Activity   ActivityReader
	Tracker    alerting.Tracker
	Dispatcher CycleRunner
	Auth       *auth.Middleware
	Audit      audit.Logger
	AccessLog  io.Writer
}

// NewRouter wires every route.
func NewRouter(deps Deps) (*mux.Router, error) {
	activityHandler, err := NewActivityHandler(deps.Activity)
	if err != nil {
		return nil, err
	}
	marksHandler, err := NewMarksHandler(deps.Tracker, deps.Audit)
	if err != nil {
		return nil, err
	}
	dispatchHandler, err := NewDispatchHandler(deps.Dispatcher, deps.Audit)
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	if deps.Auth != nil {
		api.Use(deps.Auth.Wrap)
	}
	api.HandleFunc("/activity/{entity}", activityHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/activity/{entity}/export.{format}", activityHandler.Export).Methods(http.MethodGet)
	api.HandleFunc("/notifications/marks", marksHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/notifications/marks/{key}", marksHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/notifications/marks/{key}", marksHandler.Clear).Methods(http.MethodDelete)
	api.HandleFunc("/notifications/reset", marksHandler.Reset).Methods(http.MethodPost)
	api.HandleFunc("/notifications/run", dispatchHandler.Run).Methods(http.MethodPost)
	return r, nil
}

// NewHandler returns the router wrapped with panic recovery and an access log.
func NewHandler(deps Deps) (http.Handler, error) {
	router, err := NewRouter(deps)
	if err != nil {
		return nil, err
	}
	var handler http.Handler = handlers.RecoveryHandler()(router)
	if deps.AccessLog != nil {
		handler = handlers.LoggingHandler(deps.AccessLog, handler)
	}
	return handler, nil
}
