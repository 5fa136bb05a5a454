package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/raine/stockmeta/internal/config"
	"github.com/raine/stockmeta/internal/httpapi"
	"github.com/raine/stockmeta/internal/meta"
	"github.com/raine/stockmeta/internal/platform"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", ":8080", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, err := loadSettings(nil)
	if err != nil {
		return err
	}
	pref, err := meta.ParseLanguage(settings.Language)
	if err != nil {
		return err
	}
	provider, err := config.ProviderFromEnv()
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	gen, err := buildGenerator(ctx, provider, settings, store)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	api := httpapi.NewServer(gen, settings.Bounds(), platform.ID(settings.Platform), pref)
	api.SetMaxKeywords(settings.MaxKeywords)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", *addr).Msg("http api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
