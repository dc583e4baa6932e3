package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/fedforumdev/fedforum/server/fetch"
	"github.com/fedforumdev/fedforum/server/storage"
	"github.com/fedforumdev/fedforum/server/telemetry"
)

// ActivityService ties the federation pipeline together: storage,
// resolver, outbound pipeline, and the inbox routes.
type ActivityService struct {
	Config Config
	Server http.Server

	router   *mux.Router
	store    storage.Database
	fetcher  *fetch.Fetcher
	pipeline *OutputPipeline
	outbox   *ActivityOutbox
	inbox    *ActivityInbox

	cancel context.CancelFunc
}

// NewService creates an http service to exchange ActivityPub requests
// with federated peers.
func NewService(cfg Config) (*ActivityService, error) {
	dbName := cfg.Database
	if dbName == "" {
		dbName = "fedforum.db"
	}
	store := storage.NewDatabase(dbName)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("opening sqlite database [%s]: %w", dbName, err)
	}

	svc := &ActivityService{
		Config:   cfg,
		router:   mux.NewRouter(),
		store:    store,
		fetcher:  fetch.NewFetcher(store),
		pipeline: NewPipeline(),
	}
	svc.outbox = &ActivityOutbox{
		host:         cfg.PublicHost(),
		store:        store,
		pipeline:     svc.pipeline,
		sendUnsigned: cfg.Server.SendUnsigned,
	}
	svc.inbox = &ActivityInbox{
		service:        svc,
		store:          store,
		fetcher:        svc.fetcher,
		outbox:         svc.outbox,
		acceptUnsigned: cfg.Server.ReceiveUnsigned,
	}

	svc.addHandlers()

	svc.Server = http.Server{
		Handler:      svc.router,
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
	}
	return svc, nil
}

func (s *ActivityService) addHandlers() {
	s.router.HandleFunc("/", homeHandler).Methods("GET")
	s.router.HandleFunc("/.well-known/webfinger", s.webfingerHandler).Methods("GET")
	s.router.HandleFunc("/u/{name}", s.personHandler).Methods("GET")
	s.router.HandleFunc("/c/{name}", s.communityHandler).Methods("GET")

	inboxHandler := RequestLogger{Handler: s.inbox.PostHTTP}.ServeHTTP
	s.router.HandleFunc("/inbox", inboxHandler).Methods("POST")
	s.router.HandleFunc("/u/{name}/inbox", inboxHandler).Methods("POST")
	s.router.HandleFunc("/c/{name}/inbox", inboxHandler).Methods("POST")
}

// Start spawns the pipeline worker and the http listener.
func (s *ActivityService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.pipeline.Run(ctx)
	go func() {
		var err error
		if s.Config.Server.useTLS() {
			telemetry.Log("tls listener starting on port %d", s.Config.Server.Port)
			err = s.Server.ListenAndServeTLS(s.Config.Server.Certificate, s.Config.Server.PrivateKey)
		} else {
			telemetry.Log("http listener starting on port %d", s.Config.Server.Port)
			err = s.Server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			telemetry.Error(err, "http listener")
		}
	}()
}

// Stop shuts down the listener and closes storage.
func (s *ActivityService) Stop(ctx context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	if err := s.Server.Shutdown(ctx); err != nil {
		telemetry.Error(err, "shutting down http server")
	}
	s.store.Close()
	telemetry.LogCounters()
}

// The contract exposed to the API layer. Local mutations are the
// caller's job; these only federate them.

func (s *ActivityService) SendDeleteInCommunity(actor *storage.Person, community *storage.Community, object DeletableObjects, reason *string, deleted bool) error {
	return s.outbox.SendDeleteInCommunity(actor, community, object, reason, deleted)
}

func (s *ActivityService) SendDeleteUser(person *storage.Person, removeData bool) error {
	return s.outbox.SendDeleteUser(person, removeData)
}

func (s *ActivityService) SendDeletePrivateMessage(actor *storage.Person, pm *storage.PrivateMessage, deleted bool) error {
	return s.outbox.SendDeletePrivateMessage(actor, pm, deleted)
}

func (s *ActivityService) SendReport(actor *storage.Person, community *storage.Community, objectIRI, reason string) error {
	return s.outbox.SendReport(actor, community, objectIRI, reason)
}

func (s *ActivityService) ResolvePersonIdentifier(ctx context.Context, identifier string, requester *storage.Person, includeDeleted bool) (*storage.Person, error) {
	return s.fetcher.ResolvePersonIdentifier(ctx, identifier, requester, includeDeleted)
}

func (s *ActivityService) ResolveCommunityIdentifier(ctx context.Context, identifier string, requester *storage.Person, includeDeleted bool) (*storage.Community, error) {
	return s.fetcher.ResolveCommunityIdentifier(ctx, identifier, requester, includeDeleted)
}

// ReceiveActivity is the inbox-receiving entry point for callers that
// are not going through the http route.
func (s *ActivityService) ReceiveActivity(ctx context.Context, body []byte) error {
	return s.inbox.ReceiveActivity(ctx, body)
}

type RequestLogger struct {
	Handler http.HandlerFunc
}

func (rl RequestLogger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	headers := make([]string, 0)
	for k, v := range r.Header {
		headers = append(headers, fmt.Sprintf("%s: %s", k, strings.Join(v, ", ")))
	}
	telemetry.Trace(strings.Join(headers, " | "))

	buf, err := io.ReadAll(r.Body)
	if err != nil {
		telemetry.Error(err, "error reading body")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(buf) > 0 {
		telemetry.Trace(string(buf))
	}
	r.Body = io.NopCloser(bytes.NewBuffer(buf))
	rl.Handler(w, r)
}

func homeHandler(w http.ResponseWriter, r *http.Request) {
	telemetry.Request(r, "homeHandler")
	telemetry.Increment("home_requests", 1)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<html><title>fedforum</title>
<body>
<p>This is a <a href="https://github.com/fedforumdev/fedforum">fedforum</a>
instance, a federated forum server. There's nothing to see here.</p>
</body>
</html>`)
}
