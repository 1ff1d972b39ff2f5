// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package window serves the Tailscale status window: a local web page
// showing the current status, opened in the user's browser.
package window

import (
	"context"
	"crypto/rand"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"time"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/gorilla/csrf"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/tailtray/tailtray/client/tailcli"
	"github.com/tailtray/tailtray/client/viewmodel"
	"github.com/tailtray/tailtray/types/logger"
	"github.com/tailtray/tailtray/types/netstatus"
	"github.com/toqueteos/webbrowser"
	"golang.org/x/sync/errgroup"
)

//go:embed window.html window.css
var embeddedFS embed.FS

var tmpls = template.Must(template.New("").ParseFS(embeddedFS, "*"))

// Server is the backend of the status window.
type Server struct {
	model *viewmodel.Model
	logf  logger.Logf

	// refreshSeconds is how often the page reloads itself.
	refreshSeconds int

	user    string // default operator user name
	handler http.Handler
}

// Options configures a Server.
type Options struct {
	// Logf logs requests that fail. If nil, nothing is logged.
	Logf logger.Logf

	// PageRefresh is how often the page reloads itself.
	// Zero means every 5 seconds.
	PageRefresh time.Duration

	// User is offered as the operator user name when the CLI reports
	// that changes are not permitted.
	User string
}

// NewServer returns a Server rendering m.
func NewServer(m *viewmodel.Model, opts Options) *Server {
	s := &Server{
		model:          m,
		logf:           opts.Logf,
		refreshSeconds: 5,
		user:           opts.User,
	}
	if s.logf == nil {
		s.logf = logger.Discard
	}
	if opts.PageRefresh > 0 {
		s.refreshSeconds = max(1, int(opts.PageRefresh/time.Second))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.serveIndex)
	mux.HandleFunc("GET /window.css", s.serveCSS)
	mux.HandleFunc("GET /api/status", s.serveStatusJSON)
	mux.HandleFunc("GET /login-qr.png", s.serveLoginQR)
	mux.HandleFunc("POST /toggle", s.action(func(ctx context.Context, _ *http.Request) error {
		return m.Toggle(ctx)
	}))
	mux.HandleFunc("POST /refresh", s.action(func(ctx context.Context, _ *http.Request) error {
		return m.Refresh(ctx)
	}))
	mux.HandleFunc("POST /exit-node", s.action(func(ctx context.Context, r *http.Request) error {
		node := r.FormValue("node")
		if err := tailcli.CheckExitNode(node); err != nil {
			return errBadRequest{err}
		}
		return m.SetExitNode(ctx, node)
	}))
	mux.HandleFunc("POST /lan-access", s.action(func(ctx context.Context, r *http.Request) error {
		allow, err := strconv.ParseBool(r.FormValue("allow"))
		if err != nil {
			return errBadRequest{fmt.Errorf("invalid allow value %q", r.FormValue("allow"))}
		}
		return m.SetExitNodeAllowLANAccess(ctx, allow)
	}))
	mux.HandleFunc("POST /operator", s.action(func(ctx context.Context, r *http.Request) error {
		user := r.FormValue("user")
		if user == "" {
			user = s.user
		}
		if user != "" {
			if err := tailcli.CheckOperator(user); err != nil {
				return errBadRequest{err}
			}
		}
		return m.SetOperator(ctx, user)
	}))

	// The page is only served on loopback, so the cookie can't be Secure.
	// The key lives as long as the process; a restarted window gets a
	// fresh page and token.
	protect := csrf.Protect(newCSRFKey(), csrf.Secure(false), csrf.Path("/"))(mux)
	s.handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		protect.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
	return s
}

func newCSRFKey() []byte {
	key := make([]byte, 32)
	rand.Read(key)
	return key
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

type errBadRequest struct{ error }

func (e errBadRequest) Unwrap() error { return e.error }

type pageData struct {
	State          viewmodel.State
	Message        string
	CSRFField      template.HTML
	RefreshSeconds int
	User           string
	ExitNodes      []netstatus.PeerInfo
	ExitNodeID     string
	Updated        string
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	st := s.model.Snapshot()
	data := pageData{
		State:          st,
		Message:        viewmodel.UserMessage(st.Err),
		CSRFField:      csrf.TemplateField(r),
		RefreshSeconds: s.refreshSeconds,
		User:           s.user,
	}
	if rec := st.Record; rec != nil {
		data.ExitNodes = rec.ExitNodeOptions()
		if p, ok := rec.ExitNode(); ok {
			data.ExitNodeID = p.ID
		}
	}
	if !st.Updated.IsZero() {
		data.Updated = st.Updated.Format(time.TimeOnly)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := tmpls.ExecuteTemplate(w, "window.html", data); err != nil {
		s.logf("window: rendering page: %v", err)
	}
}

func (s *Server) serveCSS(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, embeddedFS, "window.css")
}

// serveLoginQR serves the login URL as a QR code, for logging in from
// a phone.
func (s *Server) serveLoginQR(w http.ResponseWriter, r *http.Request) {
	rec := s.model.Snapshot().Record
	if rec == nil || rec.AuthURL == "" {
		http.Error(w, "not waiting for login", http.StatusNotFound)
		return
	}
	png, err := qrcode.Encode(rec.AuthURL, qrcode.Medium, 256)
	if err != nil {
		s.logf("window: QR code: %v", err)
		http.Error(w, "QR code error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

// apiState is the JSON form of a viewmodel.State.
type apiState struct {
	Record         *netstatus.Record `json:"record"`
	Error          string            `json:"error,omitempty"`
	Busy           bool              `json:"busy"`
	Op             viewmodel.Op      `json:"op,omitempty"`
	Updated        time.Time         `json:"updated,omitzero"`
	ReadOnly       bool              `json:"readOnly"`
	AllowLANAccess bool              `json:"allowLANAccess"`
}

func toAPIState(st viewmodel.State) apiState {
	return apiState{
		Record:         st.Record,
		Error:          viewmodel.UserMessage(st.Err),
		Busy:           st.Busy,
		Op:             st.Op,
		Updated:        st.Updated,
		ReadOnly:       st.ReadOnly,
		AllowLANAccess: st.AllowLANAccess,
	}
}

func (s *Server) writeState(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := jsonv2.MarshalWrite(w, toAPIState(s.model.Snapshot()), jsontext.WithIndent("  ")); err != nil {
		s.logf("window: writing status: %v", err)
	}
}

func (s *Server) serveStatusJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-CSRF-Token", csrf.Token(r))
	s.writeState(w, http.StatusOK)
}

// action returns a handler running fn against the model.
//
// Requests that accept JSON get the resulting state back; form posts
// from the page are redirected to it. A busy model answers 409.
func (s *Server) action(fn func(context.Context, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wantJSON := r.Header.Get("Accept") == "application/json"
		err := fn(r.Context(), r)
		var bad errBadRequest
		switch {
		case errors.As(err, &bad), errors.Is(err, tailcli.ErrInvalidArgument):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case errors.Is(err, viewmodel.ErrBusy):
			http.Error(w, viewmodel.UserMessage(err), http.StatusConflict)
			return
		case err != nil:
			s.logf("window: %s: %v", r.URL.Path, err)
		}
		if wantJSON {
			code := http.StatusOK
			if err != nil {
				code = http.StatusBadGateway
			}
			s.writeState(w, code)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// Listen binds addr and returns the listener and the URL of the page.
// An empty addr listens on a random loopback port.
func Listen(addr string) (net.Listener, string, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("window: %w", err)
	}
	return ln, "http://" + ln.Addr().String() + "/", nil
}

// Serve serves s on ln until ctx is done. If poll is positive, status is
// also refreshed every poll.
func (s *Server) Serve(ctx context.Context, ln net.Listener, poll time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)
	hs := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logger.StdLogger(logger.WithPrefix(s.logf, "window: ")),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	g.Go(func() error {
		if err := hs.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	})
	if poll > 0 {
		g.Go(func() error {
			if err := s.model.Run(ctx, poll); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Run listens on addr, optionally opens the page in a browser, and
// serves until ctx is done.
func (s *Server) Run(ctx context.Context, addr string, poll time.Duration, openBrowser bool) error {
	ln, url, err := Listen(addr)
	if err != nil {
		return err
	}
	s.logf("Serving Tailscale status at %v ...", url)
	if openBrowser {
		go webbrowser.Open(url)
	}
	return s.Serve(ctx, ln, poll)
}
