package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"danyak/types"

	"go.uber.org/zap"
)

const dialTimeout = 10 * time.Second
const defaultReqTimeout = 30 * time.Second

// refresh this long before the access token actually expires
const refreshLeeway = 60 * time.Second

type ClientOptions struct {
	Url     string
	AnonKey string
	Timeout time.Duration
	Storage SessionStorage
	Logger  *zap.Logger

	// overridable for tests
	HttpClient *http.Client
	Now        func() time.Time
}

// Api is the single remote client for the backend service. It implements
// both types.AuthApi and types.DataApi.
type Api struct {
	baseUrl string
	anonKey string
	client  *http.Client
	storage SessionStorage
	log     *zap.Logger
	now     func() time.Time

	mu             sync.Mutex
	session        *types.Session
	loaded         bool
	listeners      map[uint64]types.AuthListener
	nextListenerId uint64

	refreshMu   sync.Mutex
	autoRefresh *autoRefresher
}

var _ types.AuthApi = (*Api)(nil)
var _ types.DataApi = (*Api)(nil)

func NewApi(opts ClientOptions) *Api {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultReqTimeout
	}

	client := opts.HttpClient
	if client == nil {
		netDialer := &net.Dialer{
			Timeout: dialTimeout,
		}
		client = &http.Client{
			Transport: &http.Transport{
				DialContext: netDialer.DialContext,
			},
			Timeout: timeout,
		}
	}

	underlying := client.Transport
	if underlying == nil {
		underlying = http.DefaultTransport
	}
	client = &http.Client{
		Transport: &apiKeyTransport{
			anonKey:             opts.AnonKey,
			underlyingTransport: underlying,
		},
		Timeout: client.Timeout,
	}

	storage := opts.Storage
	if storage == nil {
		storage = NewMemoryStorage()
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Api{
		baseUrl:   strings.TrimRight(opts.Url, "/"),
		anonKey:   opts.AnonKey,
		client:    client,
		storage:   storage,
		log:       logger.Named("api"),
		now:       now,
		listeners: map[uint64]types.AuthListener{},
	}
}

type apiKeyTransport struct {
	anonKey             string
	underlyingTransport http.RoundTripper
}

// RoundTrip adds the project key to every request, and the key as bearer
// token when the caller didn't authenticate the request with a session.
func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("apikey", t.anonKey)
	if req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+t.anonKey)
	}
	return t.underlyingTransport.RoundTrip(req)
}

func (t *apiKeyTransport) CloseIdleConnections() {
	type closeIdler interface {
		CloseIdleConnections()
	}
	if ci, ok := t.underlyingTransport.(closeIdler); ok {
		ci.CloseIdleConnections()
	}
}
