// internal/handlers/routes.go
package handlers

import "net/http"

// APIPrefix is the path prefix of the versioned API
const APIPrefix = "/api/v1"

// Routes groups the handlers mounted on the mux
type Routes struct {
	Health      *HealthHandler
	Collections *CollectionsHandler
	Sales       *SalesHandler
	Sync        *SyncHandler
}

// RegisterRoutes mounts every endpoint on mux
func RegisterRoutes(mux *http.ServeMux, rt Routes) {
	if rt.Health != nil {
		mux.HandleFunc("GET /health", rt.Health.Health)
		mux.HandleFunc("GET /ready", rt.Health.Readiness)
	}

	// Collections
	mux.HandleFunc("GET "+APIPrefix+"/collections/{name}", rt.Collections.List)
	mux.HandleFunc("GET "+APIPrefix+"/collections/{name}/count", rt.Collections.Count)
	mux.HandleFunc("POST "+APIPrefix+"/collections/{name}", rt.Collections.Add)

	// Sales
	mux.HandleFunc("POST "+APIPrefix+"/sales", rt.Sales.Finalize)
	mux.HandleFunc("GET "+APIPrefix+"/sales", rt.Sales.List)
	mux.HandleFunc("GET "+APIPrefix+"/sales/export", rt.Sales.Export)

	// Sync
	mux.HandleFunc("GET "+APIPrefix+"/sync/status", rt.Sync.Status)
	mux.HandleFunc("POST "+APIPrefix+"/sync", rt.Sync.SyncNow)
	mux.HandleFunc("PUT "+APIPrefix+"/connectivity", rt.Sync.SetConnectivity)
}
