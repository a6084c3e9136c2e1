package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/semmidev/custos/internal/adapter/storage"
	"github.com/semmidev/custos/internal/infrastructure/logger"
)

// GoogleOAuthService runs the one-off browser flow that yields the refresh
// token the Google Drive store needs (storage.gdrive.refresh_token).
type GoogleOAuthService struct {
	config     *oauth2.Config
	logger     *logger.Logger
	state      string
	authServer *http.Server
}

func NewGoogleOAuthService(log *logger.Logger, clientSecretPath string) (*GoogleOAuthService, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}

	cfg, err := storage.OAuthConfig(clientSecretPath)
	if err != nil {
		return nil, err
	}

	return &GoogleOAuthService{
		config: cfg,
		logger: log.Named("oauth"),
		state:  uuid.NewString(),
	}, nil
}

func (s *GoogleOAuthService) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /auth/google/drive", func(w http.ResponseWriter, r *http.Request) {
		authURL := s.config.AuthCodeURL(s.state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
		http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
	})

	mux.HandleFunc("GET /auth/google/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != s.state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code parameter", http.StatusBadRequest)
			return
		}

		token, err := s.config.Exchange(r.Context(), code)
		if err != nil {
			http.Error(w, fmt.Sprintf("token exchange failed: %v", err), http.StatusInternalServerError)
			return
		}

		if token.RefreshToken == "" {
			fmt.Fprintln(w, "⚠️ No refresh token returned. Revoke app access & re-authorize.")
			return
		}

		s.logger.Infow("Refresh token issued; set storage.gdrive.refresh_token or CUSTOS_STORAGE_GDRIVE_REFRESH_TOKEN")
		fmt.Fprintf(w, "✅ Refresh Token:\n%s\n\nPut it in storage.gdrive.refresh_token.\n", token.RefreshToken)
	})

	return mux
}

// Serve listens on addr until ctx is cancelled.
func (s *GoogleOAuthService) Serve(ctx context.Context, addr string) error {
	s.authServer = &http.Server{
		Addr:              addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("Google Drive OAuth server listening", "url", "http://"+addr+"/auth/google/drive")
		if err := s.authServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("OAuth server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.authServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown OAuth server: %w", err)
	}
	s.logger.Infow("OAuth server stopped successfully")
	return nil
}
