package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/counsel-relay-api/api"
	"github.com/linesmerrill/counsel-relay-api/api/scheduler"
	"github.com/linesmerrill/counsel-relay-api/assignment"
	"github.com/linesmerrill/counsel-relay-api/config"
	"github.com/linesmerrill/counsel-relay-api/core"
	"github.com/linesmerrill/counsel-relay-api/databases"
	"github.com/linesmerrill/counsel-relay-api/identity"
	"github.com/linesmerrill/counsel-relay-api/sessions"
	"github.com/linesmerrill/counsel-relay-api/transport"
)

// App stores the router and the wired services, so they can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Core      *core.Core
	Hub       *transport.Hub
	Auth      *api.AdminAuth
	Scheduler *scheduler.Scheduler
	dbHelper  databases.DatabaseHelper
	client    databases.ClientHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	r := api.New()
	r.Use(api.RequestLogger)

	admin := Admin{Core: a.Core}
	events := Events{Core: a.Core}
	ws := WebSocket{Hub: a.Hub}

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(api.QueryTimeout))

	apiCreate.HandleFunc("/admin/login", a.Auth.CreateToken).Methods("POST")

	apiCreate.Handle("/admin/stats", a.Auth.Middleware(http.HandlerFunc(admin.StatsHandler))).Methods("GET")
	apiCreate.Handle("/admin/counselors", a.Auth.Middleware(http.HandlerFunc(admin.ListCounselorsHandler))).Methods("GET")
	apiCreate.Handle("/admin/counselors/{counselor_id}", a.Auth.Middleware(http.HandlerFunc(admin.RegisterCounselorHandler))).Methods("PUT")
	apiCreate.Handle("/admin/counselors/{counselor_id}", a.Auth.Middleware(http.HandlerFunc(admin.SetCounselorActiveHandler))).Methods("PATCH")
	apiCreate.Handle("/admin/counselors/{counselor_id}", a.Auth.Middleware(http.HandlerFunc(admin.RemoveCounselorHandler))).Methods("DELETE")
	apiCreate.Handle("/admin/identities/{party_id}/block", a.Auth.Middleware(http.HandlerFunc(admin.BlockHandler))).Methods("POST")
	apiCreate.Handle("/admin/identities/{party_id}/block", a.Auth.Middleware(http.HandlerFunc(admin.UnblockHandler))).Methods("DELETE")
	apiCreate.Handle("/admin/identities/{party_id}/finish", a.Auth.Middleware(http.HandlerFunc(admin.ForceFinishForUserHandler))).Methods("POST")
	apiCreate.Handle("/admin/lookup/{handle}", a.Auth.Middleware(http.HandlerFunc(admin.LookupHandler))).Methods("GET")
	apiCreate.Handle("/admin/sessions", a.Auth.Middleware(http.HandlerFunc(admin.ActiveSessionsHandler))).Methods("GET")
	apiCreate.Handle("/admin/sessions/{session_id}/finish", a.Auth.Middleware(http.HandlerFunc(admin.ForceFinishHandler))).Methods("POST")
	apiCreate.Handle("/admin/export", a.Auth.Middleware(http.HandlerFunc(admin.ExportHandler))).Methods("GET")

	apiCreate.Handle("/events", a.Auth.Middleware(http.HandlerFunc(events.EventHandler))).Methods("POST")

	// the websocket stays open for the whole conversation, so it lives
	// outside the timeout subrouter
	r.Handle("/ws", a.Auth.Middleware(http.HandlerFunc(ws.WebSocketHandler))).Methods("GET")

	return r
}

// Initialize is invoked by main to connect the stores, wire the core and
// create a router
func (a *App) Initialize() error {
	taxonomy, err := config.LoadTaxonomy(a.Config.CategoriesFile, a.Config.DefaultLanguage)
	if err != nil {
		zap.S().With(err).Error("failed to load category taxonomy")
		return err
	}

	handles, err := identity.NewHandleGenerator(a.Config.HandlePrefix, a.Config.HandleDigits)
	if err != nil {
		zap.S().With(err).Error("invalid handle format")
		return err
	}

	var (
		identities identity.Store
		store      sessions.Store
		directory  assignment.Directory
		lockDB     databases.SchedulerLockDatabase
	)
	switch a.Config.Store {
	case "memory":
		zap.S().Warn("using in-memory stores, nothing survives a restart")
		identities = identity.NewMemoryStore()
		store = sessions.NewMemoryStore()
		directory = assignment.NewMemoryDirectory()
	case "mongo":
		if err := a.connect(); err != nil {
			return err
		}
		identities = identity.NewMongoStore(databases.NewIdentityDatabase(a.dbHelper))
		store = sessions.NewMongoStore(
			databases.NewChatSessionDatabase(a.dbHelper),
			databases.NewMessageDatabase(a.dbHelper),
			databases.NewCounterDatabase(a.dbHelper),
		)
		directory = assignment.NewMongoDirectory(databases.NewCounselorDatabase(a.dbHelper))
		lockDB = databases.NewSchedulerLockDatabase(a.dbHelper)
	default:
		return fmt.Errorf("unknown store %q", a.Config.Store)
	}

	engine, err := assignment.NewEngine(directory, store, assignment.Policy(a.Config.AssignmentPolicy))
	if err != nil {
		zap.S().With(err).Error("invalid assignment policy")
		return err
	}

	a.Hub = transport.NewHub(nil)
	a.Core, err = core.New(core.Deps{
		Identities: identity.NewRegistry(identities, handles, a.Config.HandleMaxAttempts),
		Sessions:   store,
		Directory:  directory,
		Engine:     engine,
		Sender:     a.Hub,
		Taxonomy:   taxonomy,
		AdminIDs:   a.Config.AdminIDs,
		OpTimeout:  a.Config.QueryTimeout,
	})
	if err != nil {
		return err
	}
	a.Hub.SetDispatcher(a.Core)

	if a.Config.QueryTimeout > 0 {
		api.QueryTimeout = a.Config.QueryTimeout
	}
	if a.Config.JWTSecret == "" || a.Config.AdminPasswordHash == "" {
		zap.S().Warn("JWT_SECRET or ADMIN_PASSWORD_HASH is not set, admin login is disabled")
	}
	a.Auth = &api.AdminAuth{
		Username:     a.Config.AdminUsername,
		PasswordHash: a.Config.AdminPasswordHash,
		Secret:       []byte(a.Config.JWTSecret),
	}
	a.Auth.SetupGoGuardian()

	mailer := scheduler.SendgridMailer{
		APIKey:    a.Config.SendgridAPIKey,
		FromName:  "Counsel Relay",
		FromEmail: a.Config.ExportFromEmail,
	}
	a.Scheduler = scheduler.NewScheduler(a.Core, lockDB, mailer, a.Config.ExportEmail, a.Config.ExportSchedule)

	// initialize api router
	a.Router = a.New()
	return nil
}

func (a *App) connect() error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}
	a.client = client

	ctx, cancel := context.WithTimeout(context.Background(), a.Config.QueryTimeout)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	a.dbHelper = databases.NewDatabase(&a.Config, client)

	if err := databases.EnsureIndexes(ctx, a.dbHelper); err != nil {
		zap.S().With(err).Error("failed to create indexes")
		return err
	}
	zap.S().Info("counsel-relay-api has connected to the database")
	return nil
}

// Close stops the scheduler and disconnects from the database
func (a *App) Close(ctx context.Context) {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.client != nil {
		if err := a.client.Disconnect(ctx); err != nil {
			zap.S().Warnw("failed to disconnect from database", "error", err)
		}
	}
}
