package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"

	"payguard/internal/facilitator"
	"payguard/internal/guard"
	"payguard/internal/policy"
	"payguard/internal/tracker"
)

// Serve runs the admission gateway: a reverse proxy to the configured
// upstream with the payment guard wrapped around every priced route.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if a.Config.Server.Upstream == "" {
		return errors.New("server.upstream is required for serve")
	}
	if a.Config.Facilitator.BaseURL == "" {
		return errors.New("facilitator.base_url is required for serve")
	}

	upstreamURL, err := url.Parse(a.Config.Server.Upstream)
	if err != nil {
		return fmt.Errorf("parse server.upstream: %w", err)
	}

	groups, err := a.loadPolicyGroups()
	if err != nil {
		return err
	}

	pricing, err := a.Config.Pricing.Build()
	if err != nil {
		return err
	}
	if pricing == nil {
		a.Logger.Warn().Msg("no pricing configured; every route is free")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	limiter, closeLimiter, err := a.newLimiter()
	if err != nil {
		return err
	}
	if closeLimiter != nil {
		defer closeLimiter()
	}

	verifier := facilitator.New(facilitator.Options{
		BaseURL:   a.Config.Facilitator.BaseURL,
		Timeout:   a.Config.Facilitator.RequestTimeout,
		UserAgent: a.Config.Facilitator.UserAgent,
	}, a.Logger)

	gd := guard.New(groups, tracker.New(store, a.Logger), limiter, a.Logger)

	payTo := a.Config.Facilitator.PayTo
	if normalized, ok := policy.NormalizeWallet(payTo); ok {
		payTo = normalized
	}

	handler := gd.Middleware(guard.HTTPOptions{
		Pricing:   pricing,
		Verifier:  verifier,
		Network:   a.Config.Facilitator.Network,
		PayTo:     payTo,
		Asset:     a.Config.Facilitator.Asset,
		VerifyURL: a.Config.Facilitator.BaseURL + "/verify",
	}, httputil.NewSingleHostReverseProxy(upstreamURL))

	server := &http.Server{
		Addr:    a.Config.Server.Listen,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("listen", a.Config.Server.Listen).
			Str("upstream", a.Config.Server.Upstream).
			Int("policy_groups", len(groups)).
			Msg("admission gateway listening")
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	a.Logger.Info().Msg("admission gateway stopped")
	return nil
}
