package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llmed/internal/manager"
	"llmed/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
// *manager.Manager implements it.
type Service interface {
	StatusReport() types.StatusResponse
	Models() []types.ModelDescriptor
	ModelInfo(name string) (types.ModelInfo, error)
	ReloadCatalog() (int, error)
	Load(name string) (types.ModelDescriptor, error)
	Unload(modelID string) bool
	RunningModels() []types.ModelDescriptor
	Cancel() bool
	Embed(ctx context.Context, modelID, text string) ([]float32, error)
	QueryWith(ctx context.Context, modelID, text string, opts manager.GenerateOptions) (manager.Completion, error)
	QueryImageWith(ctx context.Context, modelID, text, imagePath string, opts manager.GenerateOptions) (manager.Completion, error)
	QueryImageBase64(ctx context.Context, modelID, text, imageBase64 string) (string, error)
	SanityCheck() manager.SanityReport
	Ready() bool
}

var _ Service = (*manager.Manager)(nil)

type api struct {
	svc Service
}

func NewMux(svc Service) http.Handler {
	a := &api{svc: svc}
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if mw := corsMiddleware(); mw != nil {
		r.Use(mw)
	}

	r.Group(func(r chi.Router) {
		// Compression for JSON endpoints
		r.Use(middleware.Compress(5))

		r.Get("/status", a.status)
		r.Get("/sanity", a.sanity)
		r.Get("/models", a.models)
		r.Get("/models/{name}/info", a.modelInfo)
		r.Post("/models/reload", a.reload)
		r.Get("/running", a.running)
		r.Post("/load", a.load)
		r.Post("/unload", a.unload)
		r.Post("/cancel", a.cancel)

		r.Post("/embed", a.embed)
		r.Post("/query", a.query)
		r.Post("/query/image", a.queryImage)
		r.Post("/query/image64", a.queryImageBase64)
	})

	// The websocket upgrade must not pass through the compressor.
	r.Get("/events", a.events)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// decodeJSON enforces the JSON content type and body limit and decodes the
// body into v. It writes the error response and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Oversized bodies also land here; report 400 without size details.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// status godoc
// @Summary      Manager status
// @Description  Last lifecycle transition, current instance and counters.
// @Tags         lifecycle
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (a *api) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.StatusReport())
}

// sanity godoc
// @Summary      Dependency checks
// @Tags         lifecycle
// @Produce      json
// @Success      200  {object}  manager.SanityReport
// @Router       /sanity [get]
func (a *api) sanity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.SanityCheck())
}

// models godoc
// @Summary      List catalog
// @Tags         catalog
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Router       /models [get]
func (a *api) models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: a.svc.Models()})
}

// modelInfo godoc
// @Summary      GGUF metadata for a catalog entry
// @Tags         catalog
// @Produce      json
// @Param        name  path      string  true  "Catalog name"
// @Success      200   {object}  types.ModelInfo
// @Failure      404   {object}  types.ErrorResponse
// @Failure      500   {object}  types.ErrorResponse
// @Router       /models/{name}/info [get]
func (a *api) modelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := a.svc.ModelInfo(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// reload godoc
// @Summary      Re-read the manifest
// @Description  Replaces the whole catalog. Loaded instances are unaffected.
// @Tags         catalog
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /models/reload [post]
func (a *api) reload(w http.ResponseWriter, r *http.Request) {
	op := startOp(r, "reload", "")
	if _, err := a.svc.ReloadCatalog(); err != nil {
		op.end(writeError(w, err, ""), err)
		return
	}
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: a.svc.Models()})
	op.end(http.StatusOK, nil)
}

// running godoc
// @Summary      List loaded instances
// @Tags         lifecycle
// @Produce      json
// @Success      200  {object}  types.RunningResponse
// @Router       /running [get]
func (a *api) running(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.RunningResponse{Models: a.svc.RunningModels()})
}

// load godoc
// @Summary      Load a catalog model
// @Tags         lifecycle
// @Accept       json
// @Produce      json
// @Param        body  body      types.LoadRequest  true  "Model name"
// @Success      200   {object}  types.ModelDescriptor
// @Failure      400   {object}  types.ErrorResponse
// @Failure      404   {object}  types.ErrorResponse
// @Failure      500   {object}  types.ErrorResponse
// @Failure      503   {object}  types.ErrorResponse
// @Router       /load [post]
func (a *api) load(w http.ResponseWriter, r *http.Request) {
	var req types.LoadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return
	}
	op := startOp(r, "load", req.Name)
	desc, err := a.svc.Load(req.Name)
	if err != nil {
		op.end(writeError(w, err, ""), err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
	op.end(http.StatusOK, nil)
}

// unload godoc
// @Summary      Unload an instance
// @Description  ok is false when the id is unknown.
// @Tags         lifecycle
// @Accept       json
// @Produce      json
// @Param        body  body      types.UnloadRequest  true  "Instance id"
// @Success      200   {object}  types.OKResponse
// @Failure      400   {object}  types.ErrorResponse
// @Router       /unload [post]
func (a *api) unload(w http.ResponseWriter, r *http.Request) {
	var req types.UnloadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ModelID == "" {
		writeJSONError(w, http.StatusBadRequest, "model_id is required")
		return
	}
	op := startOp(r, "unload", req.ModelID)
	ok := a.svc.Unload(req.ModelID)
	writeJSON(w, http.StatusOK, types.OKResponse{OK: ok})
	op.end(http.StatusOK, nil)
}

// cancel godoc
// @Summary      Cancel in-flight generations
// @Tags         inference
// @Produce      json
// @Success      200  {object}  types.OKResponse
// @Router       /cancel [post]
func (a *api) cancel(w http.ResponseWriter, r *http.Request) {
	op := startOp(r, "cancel", "")
	writeJSON(w, http.StatusOK, types.OKResponse{OK: a.svc.Cancel()})
	op.end(http.StatusOK, nil)
}
