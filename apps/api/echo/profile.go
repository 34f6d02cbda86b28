package echoapi

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/bytes"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/profile"
	"github.com/trezcool/mahudhurio/core/risk"
	"github.com/trezcool/mahudhurio/core/study"
	"github.com/trezcool/mahudhurio/services/spreadsheet"
)

type (
	profileApi struct {
		svc        *profile.Service
		validate   *validator.Validate
		daysLeft   int
		daysToExam int
	}

	uploadResponse struct {
		Success bool              `json:"success"`
		Message string            `json:"message"`
		Added   int               `json:"added"`
		Skipped []attendance.Skip `json:"skipped"`
	}

	riskResponse struct {
		SubjectID           attendance.SubjectID  `json:"subject_id"`
		SubjectName         string                `json:"subject_name"`
		CurrentPercentage   float64               `json:"current_percentage"`
		ProjectedPercentage float64               `json:"projected_percentage"`
		RiskLevel           risk.Level            `json:"risk_level"`
		RiskProbability     float64               `json:"risk_probability"`
		Color               string                `json:"color"`
		Trend               float64               `json:"trend"`
		TotalClasses        int                   `json:"total_classes"`
		Attended            int                   `json:"attended"`
		FutureClasses       int                   `json:"future_classes"`
		RecentAbsences      int                   `json:"recent_absences"`
		Recommendations     []risk.Recommendation `json:"recommendations"`
	}

	planResponse struct {
		SubjectID             attendance.SubjectID `json:"subject_id"`
		SubjectName           string               `json:"subject_name"`
		Difficulty            float64              `json:"difficulty"`
		CurrentGradeEstimate  float64              `json:"current_grade_estimate"`
		AttendancePct         float64              `json:"attendance_pct"`
		TotalStudyHours       float64              `json:"total_study_hours"`
		RecommendedTotalHours float64              `json:"recommended_total_hours"`
		WeeklyHours           float64              `json:"weekly_hours"`
		DailyHours            float64              `json:"daily_hours"`
		Priority              study.Priority       `json:"priority"`
		PriorityColor         string               `json:"priority_color"`
		Insights              []study.Insight      `json:"insights"`
	}

	gradeResponse struct {
		Success             bool                    `json:"success"`
		PredictedScore      float64                 `json:"predicted_score"`
		GradeLetter         string                  `json:"grade_letter"`
		Confidence          float64                 `json:"confidence"`
		ModelPredictions    map[string]float64      `json:"model_predictions"`
		ImprovementAnalysis map[string]study.Target `json:"improvement_analysis"`
		Timestamp           time.Time               `json:"timestamp"`
	}
)

func registerProfileAPI(g *echo.Group, authed []echo.MiddlewareFunc, opts Options) {
	api := profileApi{
		svc:        opts.ProfileSvc,
		validate:   opts.Validate,
		daysLeft:   opts.DaysLeft,
		daysToExam: opts.DaysToExam,
	}

	ag := g.Group("", authed...)
	ag.POST("/save_data", api.saveData)
	ag.GET("/get_data", api.getData)
	ag.POST("/clear_data", api.clearData)
	ag.POST("/upload_attendance", api.uploadAttendance, uploadLimit(opts.UploadMaxBytes))
	ag.GET("/get_attendance_plot", api.attendancePlot)
	ag.GET("/attendance_risk", api.attendanceRisk)
	ag.GET("/study_plan", api.studyPlan)
	ag.POST("/predict_grade", api.predictGrade)
}

func uploadLimit(maxBytes int64) echo.MiddlewareFunc {
	if maxBytes <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return middleware.BodyLimit(bytes.Format(maxBytes))
}

// Handlers

func (api *profileApi) saveData(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data profile.Data
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to profile.Data")
	}
	if err = api.svc.SaveData(usr.ID, data); err != nil {
		return errors.Wrap(err, "saving data")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true})
}

func (api *profileApi) getData(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	data, err := api.svc.GetData(usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting data")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "data": data})
}

func (api *profileApi) clearData(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.ClearData(usr.ID); err != nil {
		return errors.Wrap(err, "clearing data")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true})
}

func (api *profileApi) uploadAttendance(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	fh, err := ctx.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return errNoFile
	case err != nil:
		return errors.Wrap(err, "reading uploaded file")
	case fh.Filename == "":
		return errNoFile
	}
	if !spreadsheet.Supported(fh.Filename) {
		return spreadsheet.ErrUnsupportedFormat
	}

	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = f.Close() }()

	rows, _, err := spreadsheet.ReadRows(f, fh.Filename)
	if err != nil {
		return errors.Wrap(err, "reading attendance sheet")
	}
	res, err := api.svc.ImportAttendance(usr.ID, rows)
	if err != nil {
		return errors.Wrap(err, "importing attendance")
	}
	return ctx.JSON(http.StatusOK, uploadResponse{
		Success: true,
		Message: fmt.Sprintf("Successfully added %d new attendance records.", res.Added),
		Added:   res.Added,
		Skipped: res.Skipped,
	})
}

func (api *profileApi) attendancePlot(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	img, err := api.svc.AttendancePlot(usr.ID)
	if err != nil {
		return errors.Wrap(err, "plotting attendance")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "image": base64.StdEncoding.EncodeToString(img)})
}

func (api *profileApi) attendanceRisk(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	daysLeft, err := horizon(ctx, "days_left", api.daysLeft, 0)
	if err != nil {
		return err
	}
	assessments, err := api.svc.AttendanceRisk(usr.ID, daysLeft)
	if err != nil {
		return errors.Wrap(err, "assessing attendance risk")
	}

	risks := make([]riskResponse, len(assessments))
	for i, a := range assessments {
		risks[i] = riskResponse{
			SubjectID:           a.SubjectID,
			SubjectName:         a.SubjectName,
			CurrentPercentage:   round(a.Current, 1),
			ProjectedPercentage: round(a.Projected, 1),
			RiskLevel:           a.Level,
			RiskProbability:     round(a.Score*100, 1),
			Color:               a.Level.Color(),
			Trend:               round(a.Trend, 1),
			TotalClasses:        a.Total,
			Attended:            a.Attended,
			FutureClasses:       a.FutureClasses,
			RecentAbsences:      a.RecentAbsences,
			Recommendations:     a.Recommendations,
		}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "days_left": daysLeft, "risks": risks})
}

func (api *profileApi) studyPlan(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	daysToExam, err := horizon(ctx, "days_to_exam", api.daysToExam, 1)
	if err != nil {
		return err
	}
	plan, err := api.svc.StudyPlan(usr.ID, daysToExam)
	if err != nil {
		return errors.Wrap(err, "planning study time")
	}

	plans := make([]planResponse, len(plan.Subjects))
	var total float64
	for i, p := range plan.Subjects {
		total += p.RecommendedHours
		plans[i] = planResponse{
			SubjectID:             p.SubjectID,
			SubjectName:           p.SubjectName,
			Difficulty:            round(p.Difficulty, 1),
			CurrentGradeEstimate:  round(p.GradeEstimate, 1),
			AttendancePct:         round(p.Attendance, 1),
			TotalStudyHours:       round(p.StudiedHours, 1),
			RecommendedTotalHours: round(p.RecommendedHours, 1),
			WeeklyHours:           round(p.WeeklyHours, 1),
			DailyHours:            round(p.DailyHours, 2),
			Priority:              p.Priority,
			PriorityColor:         p.Priority.Color(),
			Insights:              p.Insights,
		}
	}
	for i := range plan.Schedule {
		plan.Schedule[i].Hours = round(plan.Schedule[i].Hours, 1)
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"success":         true,
		"days_to_exam":    daysToExam,
		"total_hours":     round(total, 1),
		"plans":           plans,
		"weekly_schedule": plan.Schedule,
	})
}

func (api *profileApi) predictGrade(ctx echo.Context) error {
	var in study.GradeInput
	if err := ctx.Bind(&in); err != nil {
		return errors.Wrap(err, "binding to GradeInput")
	}
	if err := api.validate.Struct(in); err != nil {
		return err
	}
	pred := api.svc.PredictGrade(in)
	return ctx.JSON(http.StatusOK, gradeResponse{
		Success:        true,
		PredictedScore: round(pred.Score, 2),
		GradeLetter:    pred.Letter,
		Confidence:     round(pred.Confidence, 2),
		ModelPredictions: map[string]float64{
			"ridge_regression":   round(pred.Ridge, 2),
			"nearest_neighbours": round(pred.KNN, 2),
		},
		ImprovementAnalysis: pred.Improvements,
		Timestamp:           time.Now().UTC(),
	})
}
