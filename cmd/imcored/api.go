package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"imcore/internal/debuglog"
	"imcore/internal/protoplugin"
	"imcore/internal/resolver"
	"imcore/internal/store"
)

// APIServer exposes account, buddy-list, privacy-list, and xfer-
// thumbnail CRUD over HTTP, mirroring the teacher's own echo-based REST
// surface (api.go's APIServer) but over this core's persisted state
// instead of chat-room/channel state.
type APIServer struct {
	store    *store.Store
	registry *protoplugin.Registry
	resolver *resolver.Resolver
	dbg      *debuglog.Sink
	events   *EventsHub
	echo     *echo.Echo
}

// NewAPIServer constructs an APIServer and registers all routes.
// events may be nil, disabling the /debug/events WebSocket stream.
func NewAPIServer(st *store.Store, registry *protoplugin.Registry, res *resolver.Resolver, dbg *debuglog.Sink, events *EventsHub) *APIServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			dbg.Info("api", "%s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = jsonErrorHandler

	s := &APIServer{store: st, registry: registry, resolver: res, dbg: dbg, events: events, echo: e}
	s.registerRoutes()
	return s
}

func (s *APIServer) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/version", s.handleVersion)
	s.echo.GET("/api/protocols", s.handleListProtocols)

	s.echo.GET("/api/accounts", s.handleListAccounts)
	s.echo.PUT("/api/accounts/:protocol/:username", s.handleUpsertAccount)
	s.echo.DELETE("/api/accounts/:protocol/:username", s.handleDeleteAccount)

	s.echo.GET("/api/accounts/:protocol/:username/buddies", s.handleListBuddies)
	s.echo.PUT("/api/accounts/:protocol/:username/buddies/:buddy", s.handleUpsertBuddy)
	s.echo.DELETE("/api/accounts/:protocol/:username/buddies/:buddy", s.handleRemoveBuddy)

	s.echo.GET("/api/accounts/:protocol/:username/privacy/:list", s.handleGetPrivacyList)
	s.echo.PUT("/api/accounts/:protocol/:username/privacy/:list", s.handleSetPrivacyList)

	s.echo.GET("/api/thumbnails/:id", s.handleGetThumbnail)
	s.echo.PUT("/api/thumbnails/:id", s.handlePutThumbnail)

	s.echo.GET("/api/resolve/:hostname", s.handleResolve)

	if s.events != nil {
		s.events.Register(s.echo)
	}
}

// Run starts the Echo HTTP server on addr and blocks until ctx is cancelled.
func (s *APIServer) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()
	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutCtx)
}

// VersionResponse is the payload for GET /api/version.
type VersionResponse struct {
	Version string `json:"version"`
}

func (s *APIServer) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, VersionResponse{Version: Version})
}

// HealthResponse is the payload for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *APIServer) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// ProtocolResponse describes one registered protocol plugin.
type ProtocolResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *APIServer) handleListProtocols(c echo.Context) error {
	all := s.registry.All()
	resp := make([]ProtocolResponse, 0, len(all))
	for _, p := range all {
		resp = append(resp, ProtocolResponse{ID: p.ID(), Name: p.Name()})
	}
	return c.JSON(http.StatusOK, resp)
}

// AccountResponse is an element in the GET /api/accounts array.
type AccountResponse struct {
	ProtocolID       string `json:"protocol_id"`
	Username         string `json:"username"`
	RememberPassword bool   `json:"remember_password"`
	PrivacyPolicy    int    `json:"privacy_policy"`
}

func (s *APIServer) handleListAccounts(c echo.Context) error {
	rows, err := s.store.ListAccounts(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]AccountResponse, 0, len(rows))
	for _, a := range rows {
		resp = append(resp, AccountResponse{
			ProtocolID:       a.ProtocolID,
			Username:         a.Username,
			RememberPassword: a.RememberPassword,
			PrivacyPolicy:    a.PrivacyPolicy,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// AccountRequest is the body for PUT /api/accounts/:protocol/:username.
type AccountRequest struct {
	Password         string `json:"password"`
	RememberPassword bool   `json:"remember_password"`
	PrivacyPolicy    int    `json:"privacy_policy"`
	ConfigJSON       string `json:"config_json"`
}

func (s *APIServer) handleUpsertAccount(c echo.Context) error {
	var req AccountRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ConfigJSON == "" {
		req.ConfigJSON = "{}"
	}
	row := store.AccountRow{
		ProtocolID:       c.Param("protocol"),
		Username:         c.Param("username"),
		Password:         req.Password,
		RememberPassword: req.RememberPassword,
		PrivacyPolicy:    req.PrivacyPolicy,
		ConfigJSON:       req.ConfigJSON,
	}
	if err := s.store.UpsertAccount(c.Request().Context(), row); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIServer) handleDeleteAccount(c echo.Context) error {
	if err := s.store.DeleteAccount(c.Request().Context(), c.Param("protocol"), c.Param("username")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// BuddyResponse is an element in the GET .../buddies array.
type BuddyResponse struct {
	BuddyName   string   `json:"buddy_name"`
	ServerAlias string   `json:"server_alias"`
	LocalAlias  string   `json:"local_alias"`
	Groups      []string `json:"groups"`
}

func (s *APIServer) handleListBuddies(c echo.Context) error {
	rows, err := s.store.ListBuddies(c.Request().Context(), c.Param("protocol"), c.Param("username"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]BuddyResponse, 0, len(rows))
	for _, b := range rows {
		resp = append(resp, BuddyResponse{
			BuddyName:   b.BuddyName,
			ServerAlias: b.ServerAlias,
			LocalAlias:  b.LocalAlias,
			Groups:      b.Groups,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// BuddyRequest is the body for PUT .../buddies/:buddy.
type BuddyRequest struct {
	ServerAlias string   `json:"server_alias"`
	LocalAlias  string   `json:"local_alias"`
	Groups      []string `json:"groups"`
}

func (s *APIServer) handleUpsertBuddy(c echo.Context) error {
	var req BuddyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	row := store.BuddyRow{
		BuddyName:   c.Param("buddy"),
		ServerAlias: req.ServerAlias,
		LocalAlias:  req.LocalAlias,
		Groups:      req.Groups,
	}
	if err := s.store.UpsertBuddy(c.Request().Context(), c.Param("protocol"), c.Param("username"), row); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIServer) handleRemoveBuddy(c echo.Context) error {
	if err := s.store.RemoveBuddy(c.Request().Context(), c.Param("protocol"), c.Param("username"), c.Param("buddy")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// PrivacyListResponse is the payload for GET .../privacy/:list.
type PrivacyListResponse struct {
	Who []string `json:"who"`
}

func (s *APIServer) handleGetPrivacyList(c echo.Context) error {
	who, err := s.store.GetPrivacyList(c.Request().Context(), c.Param("protocol"), c.Param("username"), c.Param("list"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, PrivacyListResponse{Who: who})
}

func (s *APIServer) handleSetPrivacyList(c echo.Context) error {
	var req PrivacyListResponse
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.store.SetPrivacyList(c.Request().Context(), c.Param("protocol"), c.Param("username"), c.Param("list"), req.Who); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// ThumbnailResponse is the payload for GET /api/thumbnails/:id.
type ThumbnailResponse struct {
	MIME string `json:"mime"`
	Data []byte `json:"data"` // base64-encoded by encoding/json for []byte
}

func (s *APIServer) handleGetThumbnail(c echo.Context) error {
	mime, data, err := s.store.GetThumbnail(c.Request().Context(), c.Param("id"))
	if err == store.ErrNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "thumbnail not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ThumbnailResponse{MIME: mime, Data: data})
}

func (s *APIServer) handlePutThumbnail(c echo.Context) error {
	var req ThumbnailResponse
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.store.PutThumbnail(c.Request().Context(), c.Param("id"), req.MIME, req.Data); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// ResolveResponse is the payload for GET /api/resolve/:hostname.
type ResolveResponse struct {
	Addrs []string `json:"addrs"`
}

// handleResolve demonstrates internal/resolver wired behind the REST
// surface: it resolves a hostname through the shared Resolver (and
// therefore through its DNS child-worker pool) and blocks for the
// result via a buffered channel, since HTTP handlers here are
// synchronous while the resolver's own API is callback-based.
func (s *APIServer) handleResolve(c echo.Context) error {
	type result struct {
		addrs []resolver.Addr
		err   error
	}
	done := make(chan result, 1)
	s.resolver.Resolve(c.Param("hostname"), 0, func(addrs []resolver.Addr, err error) {
		done <- result{addrs, err}
	})
	r := <-done
	if r.err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, r.err.Error())
	}
	out := make([]string, 0, len(r.addrs))
	for _, a := range r.addrs {
		out = append(out, a.IP.String())
	}
	return c.JSON(http.StatusOK, ResolveResponse{Addrs: out})
}

// jsonErrorHandler ensures all error responses have a consistent JSON
// body ({"error": "message"}), matching the teacher's own handler.
func jsonErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			c.NoContent(code) //nolint:errcheck
		} else {
			c.JSON(code, map[string]string{"error": msg}) //nolint:errcheck
		}
	}
}
