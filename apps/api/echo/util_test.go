package echoapi_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core/profile"
	"github.com/trezcool/mahudhurio/core/risk"
	"github.com/trezcool/mahudhurio/core/study"
	"github.com/trezcool/mahudhurio/core/user"
	"github.com/trezcool/mahudhurio/services/chart"
	inmemdb "github.com/trezcool/mahudhurio/storage/database/inmem"
)

var (
	models struct {
		once      sync.Once
		scorer    *risk.LogisticScorer
		optimizer *study.Optimizer
		grades    *study.GradePredictor
		err       error
	}

	errMissingToken = httpErr{Message: "Not authenticated"}

	// google accounts accepted by the test token verifier, by ID token
	googleAccounts = map[string]user.GoogleProfile{
		"google-token": {GoogleID: "g-42", Email: "grace@test.cd", Name: "Grace Hopper"},
	}
)

// trainedModels trains the models once for the whole package.
func trainedModels(t *testing.T) (*risk.LogisticScorer, *study.Optimizer, *study.GradePredictor) {
	models.once.Do(func() {
		if models.scorer, models.err = risk.TrainLogistic(42); models.err != nil {
			return
		}
		if models.optimizer, models.err = study.NewOptimizer(42); models.err != nil {
			return
		}
		models.grades, models.err = study.NewGradePredictor(42)
	})
	require.NoError(t, models.err)
	return models.scorer, models.optimizer, models.grades
}

type env struct {
	app     *Server
	usrRepo user.Repository
	usrSvc  *user.Service
}

func setup(t *testing.T) env {
	t.Helper()
	db := inmemdb.Open()
	return setupWithRepos(t, inmemdb.NewUserRepository(db), inmemdb.NewProfileRepository(db))
}

func setupWithRepos(t *testing.T, usrRepo user.Repository, profileRepo profile.Repository) env {
	t.Helper()
	scorer, optimizer, grades := trainedModels(t)

	// set up services
	verifier := user.TokenVerifierFunc(func(idToken string) (user.GoogleProfile, error) {
		if p, ok := googleAccounts[idToken]; ok {
			return p, nil
		}
		return user.GoogleProfile{}, errors.New("invalid token")
	})
	validate, translator := user.NewValidatorMock()
	usrSvc := user.NewService(usrRepo, validate, verifier)
	profileSvc := profile.NewService(profileRepo, profile.Options{
		Projector:   risk.NewProjector(scorer),
		Optimizer:   optimizer,
		Grades:      grades,
		Plotter:     chart.NewAttendancePlotter(),
		HoursPerDay: 4,
	})

	// set up server
	app := NewServer(Options{
		TestMode:           true,
		DisableReqLogs:     true,
		AppName:            "Mahudhurio",
		SecretKey:          "test-secret",
		JWTExpirationDelta: time.Hour,
		UploadMaxBytes:     1 << 20,
		DaysLeft:           60,
		DaysToExam:         30,
		Validate:           validate,
		Translator:         translator,
		UserSvc:            usrSvc,
		ProfileSvc:         profileSvc,
	})
	return env{app: app, usrRepo: usrRepo, usrSvc: usrSvc}
}

type httpErr struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest posts `content` as the multipart file `filename`.
func newUploadRequest(t *testing.T, token, filename, content string) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload_attendance", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req, httptest.NewRecorder()
}

func createUser(t *testing.T, svc *user.Service, uname, pwd string) user.User {
	t.Helper()
	usr, err := svc.Signup(user.NewUser{Username: uname, Password: pwd})
	require.NoError(t, err)
	return usr
}

// login authenticates through the API and returns the issued token.
func login(t *testing.T, app http.Handler, uname, pwd string) string {
	t.Helper()
	req, rec := newRequest(http.MethodPost, "/login", marshallObj(t, user.Credentials{Username: uname, Password: pwd}))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "code")
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func runHTTPTests(t *testing.T, app http.Handler, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
