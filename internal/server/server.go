// Package server exposes the token estimate endpoint over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pavelpascari/typedhttp/pkg/typedhttp"

	"github.com/jmylchreest/enrichgpt/internal/logger"
	"github.com/jmylchreest/enrichgpt/pkg/estimate"
	"github.com/jmylchreest/enrichgpt/pkg/llm"
)

// Route paths.
const (
	EstimatePath = "/-/enrichments-gpt/estimate"
	ModelsPath   = "/-/enrichments-gpt/models"
)

// EstimateRequest is the form posted to the estimate endpoint.
type EstimateRequest struct {
	Template          string `form:"template" validate:"required"`
	SystemPrompt      string `form:"system_prompt"`
	FilterQueryString string `form:"filter_querystring"`
	Model             string `form:"model" validate:"required"`
}

// estimateDecoder reads the estimate form. typedhttp's FormDecoder treats
// values starting with "{" as JSON, which every template does.
type estimateDecoder struct {
	validate *validator.Validate
}

func (d estimateDecoder) Decode(r *http.Request) (EstimateRequest, error) {
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(typedhttp.MaxFormMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return EstimateRequest{}, typedhttp.NewValidationError("malformed form", map[string]string{"form": err.Error()})
	}
	req := EstimateRequest{
		Template:          r.FormValue("template"),
		SystemPrompt:      r.FormValue("system_prompt"),
		FilterQueryString: r.FormValue("filter_querystring"),
		Model:             typedhttp.GetFormValue(r, "model", llm.DefaultModel),
	}
	if err := d.validate.Struct(req); err != nil {
		fields := map[string]string{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[formName(fe.Field())] = fe.Tag()
			}
		}
		return req, typedhttp.NewValidationError("Form validation failed", fields)
	}
	return req, nil
}

func (estimateDecoder) ContentTypes() []string {
	return []string{"application/x-www-form-urlencoded", "multipart/form-data"}
}

func formName(field string) string {
	switch field {
	case "Template":
		return "template"
	case "Model":
		return "model"
	}
	return field
}

// EstimateResponse carries the token count.
type EstimateResponse struct {
	EstimatedTokens int `json:"estimated_tokens"`
}

// ModelsRequest is empty; the models route takes no input.
type ModelsRequest struct{}

// ModelInfo describes one catalog entry.
type ModelInfo struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Kind     string `json:"kind"`
	Provider string `json:"provider"`
	JSONMode bool   `json:"json_mode"`
}

// ModelsResponse lists the supported models.
type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

type estimateHandler struct {
	counter estimate.Counter
}

func (h *estimateHandler) Handle(ctx context.Context, req EstimateRequest) (EstimateResponse, error) {
	n, err := estimate.Estimate(h.counter, req.Template, req.SystemPrompt, req.FilterQueryString, req.Model)
	if err != nil {
		logger.WarnContext(ctx, "token estimate failed", "model", req.Model, "error", err)
		return EstimateResponse{}, err
	}
	return EstimateResponse{EstimatedTokens: n}, nil
}

type modelsHandler struct{}

func (modelsHandler) Handle(context.Context, ModelsRequest) (ModelsResponse, error) {
	models := llm.Models()
	out := make([]ModelInfo, len(models))
	for i, m := range models {
		out[i] = ModelInfo{
			ID:       m.ID,
			Label:    m.Label,
			Kind:     m.Kind.String(),
			Provider: m.Provider,
			JSONMode: m.JSONMode,
		}
	}
	return ModelsResponse{Models: out}, nil
}

// okEncoder writes JSON with 200 regardless of method; the router would
// otherwise answer POSTs with 201.
type okEncoder[T any] struct{}

func (okEncoder[T]) Encode(w http.ResponseWriter, data T, _ int) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	return json.NewEncoder(w).Encode(data)
}

func (okEncoder[T]) ContentType() string { return "application/json" }

// NewHandler returns the routes served by enrichgpt.
func NewHandler(counter estimate.Counter) http.Handler {
	router := typedhttp.NewRouter()

	typedhttp.POST[EstimateRequest, EstimateResponse](router, EstimatePath, &estimateHandler{counter: counter},
		typedhttp.WithDecoder[EstimateRequest](estimateDecoder{validate: validator.New()}),
		typedhttp.WithEncoder[EstimateResponse](okEncoder[EstimateResponse]{}),
	)
	typedhttp.GET[ModelsRequest, ModelsResponse](router, ModelsPath, modelsHandler{},
		typedhttp.WithDecoder[ModelsRequest](emptyDecoder{}),
	)
	return router
}

type emptyDecoder struct{}

func (emptyDecoder) Decode(*http.Request) (ModelsRequest, error) { return ModelsRequest{}, nil }
func (emptyDecoder) ContentTypes() []string                       { return nil }

// Server wraps an http.Server with graceful shutdown.
type Server struct {
	srv *http.Server
}

// New creates a Server listening on addr.
func New(addr string, counter estimate.Counter) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           NewHandler(counter),
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Run serves until ctx is canceled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
