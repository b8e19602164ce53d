package server

import (
	"fmt"
	"net/http"
)

// CallbackMux routes the OAuth redirect and answers everything else with a short notice.
//
// Routes are registered as GET patterns on an [http.ServeMux], so other methods get 405 from the mux.
type CallbackMux struct {
	mux        *http.ServeMux
	middleware []Middleware
}

// NewCallbackMux creates an empty mux whose fallback tells the browser where it landed.
func NewCallbackMux() *CallbackMux {
	m := &CallbackMux{mux: http.NewServeMux()}
	m.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintln(w, "yt2spotify is waiting for the Spotify sign-in redirect. You can close this tab.")
	})
	return m
}

// Use appends middleware for handlers mounted afterwards.
func (m *CallbackMux) Use(middleware ...Middleware) {
	m.middleware = append(m.middleware, middleware...)
}

// Mount registers h for GET on each of its routes.
func (m *CallbackMux) Mount(h Handler) {
	wrapped := Chain(h, m.middleware...)
	for _, route := range h.Routes() {
		m.mux.Handle(http.MethodGet+" "+route, wrapped)
	}
}

func (m *CallbackMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mux.ServeHTTP(w, r)
}
