package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/tempox/internal/server"
	"github.com/desertthunder/tempox/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Auth performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	token, err := r.authorize(ctx, cmd.Duration("timeout"), cmd.Bool("no-browser"))
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	r.writePlainln("%s Authorization successful", r.palette.OK("✓"))
	r.writePlain("%s Tokens saved to %s\n\n", r.palette.OK("✓"), r.configPath)
	r.writePlain("You can now use: tempox organize --dry-run\n")
	return nil
}

func (r *Runner) authorize(ctx context.Context, timeout time.Duration, noBrowser bool) (*oauth2.Token, error) {
	svc, err := r.spotifyService()
	if err != nil {
		return nil, err
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	redirectURI := svc.GetOAuthConfig().RedirectURL
	handler := server.NewOAuthHandler(svc.GetOAuthConfig(), state, redirectURI)
	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	srv := server.NewCallbackServer(addr, handler, r.logger)

	if err := srv.Start(); err != nil {
		return nil, err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.logger.Infof("waiting for OAuth callback at %v", srv.Addr())

	authURL := svc.GetAuthURL(state)
	if noBrowser {
		r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
	} else {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := r.openBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("%s Could not open browser automatically.", r.palette.Warn("⚠"))
			r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
		}
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	token, err := srv.Wait(waitCtx)
	if err != nil {
		return nil, fmt.Errorf("authorization failed: %w", err)
	}
	if token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return token, nil
}
