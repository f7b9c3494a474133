package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/ratelimit"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/services/email"
	"github.com/trezcool/academia/storage/database/inmem"
	"github.com/trezcool/academia/tests"
)

var (
	errMissingToken = httpErr{Error: "user not authenticated"}
	errForbidden    = httpErr{Error: "permission denied"}

	remoteAddrSeq uint32
)

type testApp struct {
	app     Server
	conf    *core.Config
	usrRepo user.Repository
	roles   access.RoleWriter
	usrSvc  *user.Service
	certSvc *certificate.Service
	mailSvc *emailsvc.ConsoleServiceMock
	clock   *clock
	logger  *testutil.Logger
}

// setup builds a server over fresh in-memory tables. opts may override any dependency before the server is built.
func setup(t *testing.T, opts ...func(*Deps)) *testApp {
	t.Helper()

	conf := testutil.NewConfig()
	logger := new(testutil.Logger)

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	roleRepo := inmemdb.NewRoleRepository(db)
	certRepo := inmemdb.NewCertificateRepository(db)

	// set up services
	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	certSvc := certificate.NewService(certRepo, usrSvc)

	presets, err := ratelimit.FromConfig(conf.RateLimit)
	require.NoError(t, err)
	clk := newClock()
	metrics := NewMetrics()

	deps := &Deps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		UserSvc:        usrSvc,
		CertificateSvc: certSvc,
		RoleStore:      roleRepo,
		Limiter:        ratelimit.New(ratelimit.WithClock(clk.Now), ratelimit.WithObserver(metrics.ObserveRateLimit)),
		Presets:        presets,
		Metrics:        metrics,
		DisableReqLogs: true,
	}
	for _, opt := range opts {
		opt(deps)
	}

	// set up server
	app, err := NewServer("" /* addr */, nil /* shutdown */, deps)
	require.NoError(t, err)

	return &testApp{
		app:     app,
		conf:    conf,
		usrRepo: usrRepo,
		roles:   roleRepo,
		usrSvc:  usrSvc,
		certSvc: certSvc,
		mailSvc: mailSvc,
		clock:   clk,
		logger:  logger,
	}
}

func (ta *testApp) createUser(t *testing.T, name, email string, role access.Role, isActive bool) user.User {
	return testutil.CreateUser(t, ta.usrRepo, ta.roles, name, email, testPassword, role, isActive)
}

func (ta *testApp) serve(req *http.Request, rec *httptest.ResponseRecorder) {
	ta.app.ServeHTTP(rec, req)
}

const testPassword = "Sup3r-Secret!"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

// nextRemoteAddr gives every request its own client address so that tables do not trip the rate limiter.
func nextRemoteAddr() string {
	n := atomic.AddUint32(&remoteAddrSeq, 1)
	return fmt.Sprintf("10.%d.%d.%d:41234", (n>>16)&0xff, (n>>8)&0xff, n&0xff)
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = nextRemoteAddr()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := GenerateToken(conf, GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "code")
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, ta *testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			ta.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}
