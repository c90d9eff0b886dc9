package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/thirtythreehz/crates/internal/server"
	"github.com/thirtythreehz/crates/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the three-legged authorization flow against Discogs.
//
// Fetches a request token, opens the browser for approval while a local
// callback server captures the verifier, exchanges the approved request pair
// for the durable access pair, and seals the secret into the config file.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if r.config.Discogs.ConsumerKey == "" || r.config.Discogs.ConsumerSecret == "" {
		return fmt.Errorf("%w: Discogs consumer_key and consumer_secret must be set in %s", shared.ErrMissingCredentials, r.configPath)
	}

	client, err := r.ensureClient()
	if err != nil {
		return err
	}

	callbackURL := fmt.Sprintf("http://%s:%d/callback", r.config.Server.Host, r.config.Server.Port)
	request, err := client.RequestToken(ctx, callbackURL)
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	verifier, err := r.awaitApproval(ctx, client.AuthorizeURL(request.Token), request.Token)
	if err != nil {
		return err
	}

	access, err := client.AccessToken(ctx, *request, verifier)
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}
	client.SetAccess(*access)

	identity, err := client.Identity(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify new credentials: %w", err)
	}

	if err := r.saveCredentials(*access, identity.Username); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Logged in as %s\n", identity.Username)
	r.writePlain("✓ Sealed credentials saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: crates sync\n")

	return nil
}

// awaitApproval serves the local callback endpoint while the user approves
// the request token in their browser, returning the captured verifier.
func (r *Runner) awaitApproval(ctx context.Context, authURL, requestToken string) (string, error) {
	handler := server.NewCallbackHandler(requestToken)
	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(handler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting callback server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Discogs authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	result, waitErr := handler.WaitForCallback(waitCtx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down callback server", "error", err)
	}

	select {
	case err := <-serverErrors:
		return "", fmt.Errorf("callback server error: %w", err)
	default:
	}

	if waitErr != nil {
		return "", fmt.Errorf("authorization failed: %w", waitErr)
	}

	return result.Verifier, nil
}

// AuthWhoami verifies the configured credentials against the identity
// endpoint, the cheapest end-to-end check that auth works.
func (r *Runner) AuthWhoami(ctx context.Context, cmd *cli.Command) error {
	client, err := r.ensureClient()
	if err != nil {
		return err
	}

	identity, err := client.Identity(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(identity, true)
	}

	r.writePlain("✓ Authenticated as %s (id %d)\n", identity.Username, identity.ID)
	if state, ok := client.RateLimit(); ok {
		r.writePlain("Rate limit: %d/%d remaining\n", state.Remaining, state.Limit)
	}
	return nil
}

// AuthLogout clears the stored access pair from the config file. The grant
// itself stays active until revoked at discogs.com/settings/applications.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if r.config.Discogs.OAuthToken == "" && r.config.Discogs.OAuthSecret == "" {
		r.writePlain("No stored credentials, nothing to do.\n")
		return nil
	}

	r.config.Discogs.OAuthToken = ""
	r.config.Discogs.OAuthSecret = ""
	r.client = nil

	if r.configPath != "" {
		if err := shared.SaveConfig(r.configPath, r.config); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}

	r.writePlain("✓ Stored credentials cleared\n")
	return nil
}
