package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/example/rendez-vous/internal/activity"
	"github.com/example/rendez-vous/internal/application"
	"github.com/example/rendez-vous/internal/auth"
	"github.com/example/rendez-vous/internal/config"
	"github.com/example/rendez-vous/internal/groups"
	httptransport "github.com/example/rendez-vous/internal/http"
	"github.com/example/rendez-vous/internal/logging"
	"github.com/example/rendez-vous/internal/persistence/sqlite"
	"github.com/example/rendez-vous/internal/scheduling"
)

const shutdownTimeout = 10 * time.Second

// app is the wired service graph shared by the commands.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	storage *sqlite.Storage

	policy     *groups.Policy
	publisher  *activity.Publisher
	rendezVous *application.RendezVousService
	members    *application.MemberService
	groups     *application.GroupService
	auth       *application.AuthService
}

func newApp(ctx context.Context, common commonFlags, env environment) (*app, error) {
	return openApp(ctx, common, env, true)
}

// openApp loads the configuration, opens storage and wires the services.
// Migrations run first when migrate is set.
func openApp(ctx context.Context, common commonFlags, env environment, migrate bool) (*app, error) {
	cfg, err := config.Load(config.Options{
		ConfigFile: common.configFile,
		EnvFile:    common.envFile,
		Lookup:     env.lookup,
	})
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: env.stderr})
	if err != nil {
		return nil, err
	}

	storage, err := sqlite.Open(cfg.SQLite.DSN, sqlite.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if migrate {
		if err := storage.Migrate(ctx); err != nil {
			_ = storage.Close()
			return nil, err
		}
	}

	tokens, err := auth.NewTokenService(cfg.Token.Secret, cfg.Token.TTL, time.Now)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}

	policy := groups.NewPolicy(storage, logger)
	publisher := activity.NewPublisher(storage, storage, policy, activity.WithLogger(logger))

	a := &app{
		cfg:       cfg,
		logger:    logger,
		storage:   storage,
		policy:    policy,
		publisher: publisher,
		rendezVous: application.NewRendezVousService(application.RendezVousServiceDeps{
			RendezVous: storage,
			Members:    storage,
			Policy:     policy,
			Publisher:  publisher,
			Engine: scheduling.Config{
				ExcludeOrganizerVotes: cfg.Scheduling.ExcludeOrganizerVotes,
				AllowPastDates:        cfg.Scheduling.AllowPastDates,
				IDGenerator:           uuid.NewString,
				Now:                   time.Now,
			},
			Location:   cfg.Scheduling.Location(),
			MaxRetries: cfg.Scheduling.MaxVoteRetries,
			Logger:     logger,
		}),
		members: application.NewMemberService(storage, hashPassword, uuid.NewString, time.Now, logger),
		groups:  application.NewGroupService(storage, time.Now, logger),
		auth:    application.NewAuthService(storage, tokens, auth.VerifyPassword, logger),
	}
	return a, nil
}

func hashPassword(password string) (string, error) {
	return auth.HashPassword(password, auth.DefaultArgon2idParams)
}

func (a *app) close() {
	if err := a.storage.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}
}

// handler builds the API router over the wired services.
func (a *app) handler() http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Auth:           httptransport.NewAuthHandler(a.auth, a.cfg.HTTP.SecureCookies, a.logger),
		Members:        httptransport.NewMemberHandler(a.members, a.logger),
		RendezVous:     httptransport.NewRendezVousHandler(a.rendezVous, a.logger),
		Groups:         httptransport.NewGroupHandler(a.groups, a.policy.Forget, a.logger),
		Activity:       httptransport.NewActivityHandler(a.publisher, a.rendezVous, a.logger),
		Sessions:       a.auth,
		AllowedOrigins: a.cfg.HTTP.AllowedOrigins,
		RequestTimeout: a.cfg.HTTP.RequestTimeout,
		Logger:         a.logger,
	})
}

func (a *app) serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.HTTP.Port),
		Handler:           a.handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      a.cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("rendez-vous API listening", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.logger.Info("rendez-vous API stopped")
	return nil
}

// addMember registers a member on behalf of the operator running the tool.
func (a *app) addMember(ctx context.Context, email, name, password string, admin bool) (application.Member, error) {
	operator := application.Principal{UserID: "cli", IsAdmin: true}
	return a.members.Create(ctx, application.CreateMemberParams{
		Principal:   operator,
		Email:       email,
		DisplayName: name,
		Password:    password,
		IsAdmin:     admin,
	})
}
