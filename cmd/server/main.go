package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/propstudio/propstudio/backend-go/internal/auth"
	"github.com/propstudio/propstudio/backend-go/internal/background"
	"github.com/propstudio/propstudio/backend-go/internal/collab"
	"github.com/propstudio/propstudio/backend-go/internal/config"
	"github.com/propstudio/propstudio/backend-go/internal/document"
	"github.com/propstudio/propstudio/backend-go/internal/layout"
	mw "github.com/propstudio/propstudio/backend-go/internal/middleware"
	"github.com/propstudio/propstudio/backend-go/internal/store"
)

// sandboxLayoutID is the shared demo layout open to anonymous users. It
// starts from the sample yard and is never saved.
const sandboxLayoutID = "layout_sandbox"

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dsn := cfg.DatabaseURL
	if cfg.StoreDriver == "sqlite" {
		dsn = cfg.SQLitePath
	}
	st, err := store.Open(ctx, cfg.StoreDriver, dsn)
	if err != nil {
		slog.Error("open store", "error", err, "driver", cfg.StoreDriver)
		os.Exit(1)
	}
	defer st.Close()

	authService := auth.NewService(st, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)

	layoutService := layout.NewService(st).WithDefaultZoom(cfg.DefaultZoom)
	layoutHandler := layout.NewHandler(layoutService)

	docLoader := func(ctx context.Context, layoutID string) (*document.Layout, error) {
		if layoutID == sandboxLayoutID {
			doc := document.NewSampleLayout(sandboxLayoutID)
			doc.View.Zoom = cfg.DefaultZoom
			return doc, nil
		}
		return layoutService.Latest(ctx, layoutID)
	}
	docSaver := func(ctx context.Context, layoutID string, doc *document.Layout) error {
		if layoutID == sandboxLayoutID {
			return nil
		}
		_, err := layoutService.Save(ctx, layoutID, doc)
		return err
	}

	hub := collab.NewHub(docLoader, docSaver, cfg.AutosaveInterval)
	go hub.Run()

	backgroundHandler := background.NewHandler(cfg.BackgroundDir, layoutService, layout.ErrorStatus)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(r, cfg.Origins()))

	// Preflight requests
	r.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	// Auth routes (public)
	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Stored backgrounds (public, immutable)
	r.PathPrefix(background.URLPrefix).Handler(backgroundHandler.Serve()).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/me", authHandler.Me).Methods("GET")
	layoutHandler.Routes(api)
	api.HandleFunc("/layouts/{layoutId}/background", backgroundHandler.Upload).Methods("POST")

	// WebSocket endpoint
	r.HandleFunc("/ws/layout/{layoutId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, authService, layoutService, cfg.Origins())
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Save open layouts before connections drop. Pumps still running
		// see the hub stopped and return.
		slog.Info("saving open layouts")
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "store", cfg.StoreDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *collab.Hub, authSvc *auth.Service, layouts *layout.Service, origins []string) {
	layoutID := mux.Vars(r)["layoutId"]

	var userID string
	var displayName string

	if layoutID == sandboxLayoutID {
		userID = "anon-" + uuid.New().String()[:8]
		displayName = "Anonymous"
	} else {
		token, err := auth.TokenFromRequest(r, true)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		userID, err = authSvc.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		if _, err := layouts.Get(r.Context(), layoutID, userID); err != nil {
			status, ok := layout.ErrorStatus(err)
			if !ok {
				slog.Error("authorize websocket", "error", err, "layout", layoutID)
				status = http.StatusInternalServerError
			}
			http.Error(w, http.StatusText(status), status)
			return
		}

		user, err := authSvc.GetUser(r.Context(), userID)
		if err != nil {
			http.Error(w, "user not found", http.StatusInternalServerError)
			return
		}
		displayName = user.DisplayName
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(origins),
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := collab.NewClient(hub, conn, userID, displayName, layoutID, clientID)

	client.Serve(r.Context())
}

// originPatterns strips the scheme from configured origins; websocket.Accept
// matches host patterns.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		} else if o == "*" {
			out = append(out, o)
		}
	}
	return out
}
