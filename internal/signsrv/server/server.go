// Package server exposes the signing service over HTTP. Authentication is
// handled upstream; the caller identity arrives in a gateway-set header.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/inkform/inkform/internal/common/httpx"
	commonmiddleware "github.com/inkform/inkform/internal/common/middleware"
	"github.com/inkform/inkform/internal/signsrv/config"
	"github.com/inkform/inkform/internal/signsrv/docsign"
	"github.com/inkform/inkform/internal/signsrv/keymanager"
	"github.com/inkform/inkform/internal/signsrv/workflow"
)

const (
	ServerVersion = "0.1.0"
	ApiVersion    = "v1"

	// IdentityHeader carries the authenticated caller identity, set by the
	// API gateway in front of this service.
	IdentityHeader = "X-Inkform-Identity"
)

var validate = validator.New()

// Pinger reports backend storage health for the readiness check.
type Pinger interface {
	Ping() error
}

// SignServer is the HTTP server for the signing service.
type SignServer struct {
	Router   *chi.Mux
	docs     *docsign.Service
	keys     *keymanager.KeyManager
	requests *workflow.RequestService
	pinger   Pinger
}

// CreateNewServer assembles the server from its services. pinger may be nil
// when the backing store has no liveness probe.
func CreateNewServer(docs *docsign.Service, keys *keymanager.KeyManager, requests *workflow.RequestService, pinger Pinger) *SignServer {
	return &SignServer{
		Router:   chi.NewRouter(),
		docs:     docs,
		keys:     keys,
		requests: requests,
		pinger:   pinger,
	}
}

// MountHandlers installs middleware and routes.
func (s *SignServer) MountHandlers() {
	s.Router.Use(commonmiddleware.RequestLogger)
	s.Router.Use(commonmiddleware.PanicHandler)
	if size := config.Config().MaxRequestBodySize; size > 0 {
		s.Router.Use(commonmiddleware.LimitRequestBody(size))
	}
	if timeout, err := config.Config().GetRequestTimeout(); err == nil && timeout > 0 {
		s.Router.Use(commonmiddleware.SetTimeout(timeout))
	}
	if config.Config().HandleCORS {
		s.Router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "Content-Length", "Authorization", IdentityHeader},
			MaxAge:         300,
		}))
	}

	s.Router.Route("/keys", func(r chi.Router) {
		r.Get("/statistics", httpx.WrapHttpRsp(s.getKeyStatistics))
		r.Post("/{owner}", httpx.WrapHttpRsp(s.generateKeys))
		r.Get("/{owner}", httpx.WrapHttpRsp(s.getKeys))
		r.Delete("/{owner}", httpx.WrapHttpRsp(s.revokeKeys))
	})
	s.Router.Route("/documents/{documentID}", func(r chi.Router) {
		r.Post("/signatures", httpx.WrapHttpRsp(s.signDocument))
		r.Post("/verify", httpx.WrapHttpRsp(s.verifyDocument))
		r.Get("/workflow", httpx.WrapHttpRsp(s.getWorkflowStatus))
		r.Post("/requests", httpx.WrapHttpRsp(s.createSignatureRequest))
	})
	s.Router.Post("/requests/validate", httpx.WrapHttpRsp(s.validateRequestToken))
	s.Router.Get("/version", s.getVersion)
	s.Router.Get("/ready", s.getReadiness)
}

// identityFromRequest returns the authenticated caller identity.
func identityFromRequest(r *http.Request) (string, error) {
	identity := r.Header.Get(IdentityHeader)
	if identity == "" {
		return "", httpx.ErrUnAuthorized("missing caller identity")
	}
	return identity, nil
}

type getVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

func (s *SignServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &getVersionRsp{
		ServerVersion: "Inkform Signing Server: " + ServerVersion,
		ApiVersion:    ApiVersion,
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

func (s *SignServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("Readiness check")

	if s.pinger != nil {
		if err := s.pinger.Ping(); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("store unreachable during readiness check")
			httpx.SendJsonRsp(r.Context(), w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  "storage connection failed",
			})
			return
		}
	}

	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
