package echoapi_test

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boltdb "github.com/trezcool/mahudhurio/storage/database/bolt"
)

const (
	appData = `{
		"subjects": [{"id": 1, "name": "Mathematics"}, {"id": "2", "name": "Physics"}, {"id": 3, "name": "Art"}],
		"studySessions": [{"subject": 1, "duration": 600}],
		"studentName": "Ada"
	}`

	attendanceCSV = "Subject,Date,Time Slot,Status\n" +
		"Mathematics,2024-03-01,09:00,present\n" +
		"Mathematics,2024-03-02,09:00,present\n" +
		"Mathematics,2024-03-03,09:00,absent\n" +
		"Mathematics,2024-03-04,09:00,present\n" +
		"Physics,2024-03-01,11:00,absent\n" +
		"Physics,2024-03-02,11:00,absent\n" +
		"Physics,2024-03-03,11:00,present\n" +
		"Chemistry,2024-03-01,14:00,present\n"
)

func authedUser(t *testing.T, e env) string {
	createUser(t, e.usrSvc, "ada", "analytical-engine")
	return login(t, e.app, "ada", "analytical-engine")
}

func Test_profileApi_authRequired(t *testing.T) {
	e := setup(t)
	want := marshallObj(t, errMissingToken)

	tests := []httpTest{
		{name: "save_data", method: http.MethodPost, path: "/save_data", body: []byte(`{}`)},
		{name: "get_data", path: "/get_data"},
		{name: "clear_data", method: http.MethodPost, path: "/clear_data"},
		{name: "upload_attendance", method: http.MethodPost, path: "/upload_attendance"},
		{name: "get_attendance_plot", path: "/get_attendance_plot"},
		{name: "attendance_risk", path: "/attendance_risk"},
		{name: "study_plan", path: "/study_plan"},
		{name: "predict_grade", method: http.MethodPost, path: "/predict_grade", body: []byte(`{}`)},
		{name: "invalid token", path: "/get_data", token: "not-a-jwt"},
	}
	for i := range tests {
		tests[i].wantCode = http.StatusUnauthorized
		tests[i].wantData = want
	}
	runHTTPTests(t, e.app, tests)
}

func Test_profileApi_data(t *testing.T) {
	e := setup(t)
	token := authedUser(t, e)

	tests := []httpTest{
		{name: "empty", path: "/get_data", token: token, wantCode: http.StatusOK, wantData: []byte(`{"success": true, "data": {}}`)},
		{name: "save", method: http.MethodPost, path: "/save_data", token: token, body: []byte(appData), wantCode: http.StatusOK, wantData: []byte(`{"success": true}`)},
		{
			name:     "saved data is returned verbatim",
			path:     "/get_data",
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`{"success": true, "data": ` + appData + `}`),
		},
		{name: "not an object", method: http.MethodPost, path: "/save_data", token: token, body: []byte(`[1, 2]`), wantCode: http.StatusBadRequest},
		{name: "clear", method: http.MethodPost, path: "/clear_data", token: token, wantCode: http.StatusOK, wantData: []byte(`{"success": true}`)},
		{name: "cleared", path: "/get_data", token: token, wantCode: http.StatusOK, wantData: []byte(`{"success": true, "data": {}}`)},
	}
	runHTTPTests(t, e.app, tests)
}

func Test_profileApi_uploadAttendance(t *testing.T) {
	e := setup(t)
	token := authedUser(t, e)
	req, rec := newAuthRequest(http.MethodPost, "/save_data", token, []byte(appData))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	tests := []struct {
		name     string
		filename string
		content  string
		wantCode int
		wantData string
	}{
		{
			name:     "no file",
			wantCode: http.StatusBadRequest,
			wantData: `{"success": false, "message": "No file selected"}`,
		},
		{
			name:     "unsupported format",
			filename: "attendance.pdf",
			content:  "%PDF",
			wantCode: http.StatusBadRequest,
			wantData: `{"success": false, "message": "unsupported file format, expected .xlsx or .csv"}`,
		},
		{
			name:     "missing columns",
			filename: "attendance.csv",
			content:  "Subject,Status\nMathematics,present\n",
			wantCode: http.StatusBadRequest,
			wantData: `{"success": false, "message": "missing columns: Date, Time Slot"}`,
		},
		{
			name:     "first upload",
			filename: "attendance.csv",
			content:  attendanceCSV,
			wantCode: http.StatusOK,
			wantData: `{
				"success": true,
				"message": "Successfully added 7 new attendance records.",
				"added": 7,
				"skipped": [{"row": 7, "reason": "unknown subject"}]
			}`,
		},
		{
			name:     "same upload again",
			filename: "attendance.csv",
			content:  strings.SplitN(attendanceCSV, "Physics", 2)[0],
			wantCode: http.StatusOK,
			wantData: `{
				"success": true,
				"message": "Successfully added 0 new attendance records.",
				"added": 0,
				"skipped": [
					{"row": 0, "reason": "duplicate record"},
					{"row": 1, "reason": "duplicate record"},
					{"row": 2, "reason": "duplicate record"},
					{"row": 3, "reason": "duplicate record"}
				]
			}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newUploadRequest(t, token, tt.filename, tt.content)
			e.app.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantData, rec.Body.String())
		})
	}

	t.Run("too large", func(t *testing.T) {
		req, rec := newUploadRequest(t, token, "attendance.csv", strings.Repeat("x", 2<<20))
		e.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("stored tallies", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/get_data", token)
		e.app.ServeHTTP(rec, req)
		data := decode(t, rec)["data"].(map[string]interface{})
		tallies := data["attendanceData"].(map[string]interface{})
		assert.Equal(t, 4.0, tallies["1"].(map[string]interface{})["total"])
		assert.Equal(t, 3.0, tallies["1"].(map[string]interface{})["attended"])
		assert.Equal(t, 1.0, tallies["2"].(map[string]interface{})["attended"])
		assert.Equal(t, "Ada", data["studentName"])
	})
}

func uploadFixture(t *testing.T, e env, token string) {
	t.Helper()
	req, rec := newAuthRequest(http.MethodPost, "/save_data", token, []byte(appData))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	req, rec = newUploadRequest(t, token, "attendance.csv", attendanceCSV)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func Test_profileApi_attendancePlot(t *testing.T) {
	e := setup(t)
	token := authedUser(t, e)

	runHTTPTests(t, e.app, []httpTest{{
		name:     "nothing to plot",
		path:     "/get_attendance_plot",
		token:    token,
		wantCode: http.StatusNotFound,
		wantData: marshallObj(t, httpErr{Message: "No attendance data to plot."}),
	}})

	uploadFixture(t, e, token)
	req, rec := newAuthRequest(http.MethodGet, "/get_attendance_plot", token)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	img, err := base64.StdEncoding.DecodeString(body["image"].(string))
	require.NoError(t, err)
	_, err = png.DecodeConfig(bytes.NewReader(img))
	assert.NoError(t, err)
}

func Test_profileApi_attendanceRisk(t *testing.T) {
	e := setup(t)
	token := authedUser(t, e)

	runHTTPTests(t, e.app, []httpTest{
		{name: "no data", path: "/attendance_risk", token: token, wantCode: http.StatusOK, wantData: []byte(`{"success": true, "days_left": 60, "risks": []}`)},
		{name: "invalid horizon", path: "/attendance_risk?days_left=soon", token: token, wantCode: http.StatusBadRequest},
		{
			name:     "negative horizon",
			path:     "/attendance_risk?days_left=-1",
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Message: "days_left must be at least 0"}),
		},
		{name: "zero horizon", path: "/attendance_risk?days_left=0", token: token, wantCode: http.StatusOK, wantData: []byte(`{"success": true, "days_left": 0, "risks": []}`)},
	})

	uploadFixture(t, e, token)
	req, rec := newAuthRequest(http.MethodGet, "/attendance_risk?days_left=30", token)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, 30.0, body["days_left"])
	risks := body["risks"].([]interface{})
	require.Len(t, risks, 2)

	physics := risks[0].(map[string]interface{})
	assert.Equal(t, "Physics", physics["subject_name"])
	assert.Equal(t, 33.3, physics["current_percentage"])
	assert.Equal(t, "High", physics["risk_level"])
	assert.Equal(t, "danger", physics["color"])
	assert.Equal(t, 3.0, physics["total_classes"])
	assert.NotEmpty(t, physics["recommendations"])

	maths := risks[1].(map[string]interface{})
	assert.Equal(t, "Mathematics", maths["subject_name"])
	assert.Equal(t, 75.0, maths["current_percentage"])

	t.Run("term is over", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/attendance_risk?days_left=0", token)
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		physics := decode(t, rec)["risks"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, 0.0, physics["future_classes"])
		assert.Equal(t, physics["current_percentage"], physics["projected_percentage"])
	})

	t.Run("inconsistent tallies", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/save_data", token, []byte(`{
			"subjects": [{"id": 1, "name": "Mathematics"}],
			"attendanceData": {"1": {"total": 2, "attended": 5, "records": []}}
		}`))
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/attendance_risk", token)
		e.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"success": false, "message": "malformed attendance data for subject \"1\": attended exceeds total"}`, rec.Body.String())
	})
}

func Test_profileApi_studyPlan(t *testing.T) {
	e := setup(t)
	token := authedUser(t, e)
	uploadFixture(t, e, token)

	runHTTPTests(t, e.app, []httpTest{
		{name: "invalid horizon", path: "/study_plan?days_to_exam=-3", token: token, wantCode: http.StatusBadRequest},
		{
			name:     "exam today",
			path:     "/study_plan?days_to_exam=0",
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Message: "days_to_exam must be at least 1"}),
		},
	})

	req, rec := newAuthRequest(http.MethodGet, "/study_plan?days_to_exam=14", token)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, 14.0, body["days_to_exam"])
	plans := body["plans"].([]interface{})
	require.Len(t, plans, 3)
	for _, p := range plans {
		plan := p.(map[string]interface{})
		assert.Contains(t, []interface{}{"High", "Medium", "Low"}, plan["priority"])
		assert.NotEmpty(t, plan["insights"])
	}
	schedule := body["weekly_schedule"].([]interface{})
	require.Len(t, schedule, 7)
	assert.Equal(t, "Monday", schedule[0].(map[string]interface{})["day"])
}

func Test_profileApi_predictGrade(t *testing.T) {
	e := setup(t)
	token := authedUser(t, e)

	req, rec := newAuthRequest(http.MethodPost, "/predict_grade", token,
		[]byte(`{"attendance": 92, "study_hours_per_week": 15, "midterm": 88, "assignment": 90, "quiz": 85}`))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	score := body["predicted_score"].(float64)
	assert.True(t, score >= 0 && score <= 100)
	assert.NotEmpty(t, body["grade_letter"])
	assert.Contains(t, body["model_predictions"], "ridge_regression")
	assert.Contains(t, body["model_predictions"], "nearest_neighbours")

	req, rec = newAuthRequest(http.MethodPost, "/predict_grade", token,
		[]byte(`{"attendance": 150, "study_hours_per_week": 15, "midterm": 88, "assignment": 90, "quiz": -1}`))
	e.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errs := decode(t, rec)["errors"].(map[string]interface{})
	assert.Contains(t, errs, "attendance")
	assert.Contains(t, errs, "quiz")
}

func Test_profileApi_deactivatedUser(t *testing.T) {
	e := setup(t)
	token := authedUser(t, e)

	usr, err := e.usrRepo.GetUserByUsername("ada")
	require.NoError(t, err)
	usr.IsActive = false
	_, err = e.usrRepo.UpdateUser(usr)
	require.NoError(t, err)

	runHTTPTests(t, e.app, []httpTest{{
		name:     "get_data",
		path:     "/get_data",
		token:    token,
		wantCode: http.StatusForbidden,
		wantData: marshallObj(t, httpErr{Message: "Account deactivated"}),
	}})
}

func Test_profileApi_closedStore(t *testing.T) {
	db, err := boltdb.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	e := setupWithRepos(t, boltdb.NewUserRepository(db), boltdb.NewProfileRepository(db))
	token := authedUser(t, e)
	require.NoError(t, db.Close())

	runHTTPTests(t, e.app, []httpTest{{
		name:     "get_data",
		path:     "/get_data",
		token:    token,
		wantCode: http.StatusInternalServerError,
		wantData: marshallObj(t, httpErr{Message: http.StatusText(http.StatusInternalServerError)}),
	}})

	select {
	case <-e.app.ShutdownSignal():
	default:
		t.Fatal("server was not asked to shut down")
	}
}
