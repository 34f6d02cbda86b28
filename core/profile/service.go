package profile

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/risk"
	"github.com/trezcool/mahudhurio/core/study"
)

var (
	// errors
	ErrNotFound     = errors.New("no data found for user")
	ErrNoAttendance = errors.New("no attendance data to plot")
)

type (
	Repository interface {
		// GetData returns ErrNotFound if the user never saved any data.
		GetData(userID int) (Data, error)
		SaveData(userID int, data Data) error
	}

	Options struct {
		Projector   *risk.Projector
		Optimizer   *study.Optimizer
		Grades      *study.GradePredictor
		Plotter     Plotter
		HoursPerDay float64
		Logger      core.Logger
	}

	Service struct {
		repo Repository
		opts Options

		locks sync.Map // user ID -> *sync.Mutex
	}
)

func NewService(repo Repository, opts Options) *Service {
	return &Service{repo: repo, opts: opts}
}

// lock serializes the read-modify-write cycles on the data of a user.
func (svc *Service) lock(userID int) func() {
	mu, _ := svc.locks.LoadOrStore(userID, new(sync.Mutex))
	mu.(*sync.Mutex).Lock()
	return mu.(*sync.Mutex).Unlock
}

func (svc *Service) load(userID int) (Data, error) {
	data, err := svc.repo.GetData(userID)
	if errors.Cause(err) == ErrNotFound {
		return Data{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "loading user data")
	}
	if data == nil {
		data = Data{}
	}
	return data, nil
}

// GetData returns the app data of the user, empty if none was saved.
func (svc *Service) GetData(userID int) (Data, error) {
	return svc.load(userID)
}

// SaveData replaces the app data of the user.
func (svc *Service) SaveData(userID int, data Data) error {
	if data == nil {
		data = Data{}
	}
	defer svc.lock(userID)()
	return errors.Wrap(svc.repo.SaveData(userID, data), "saving user data")
}

func (svc *Service) ClearData(userID int) error {
	return svc.SaveData(userID, Data{})
}

// ImportAttendance merges attendance rows into the user's attendance data.
// Data is only written back when at least one record was added.
func (svc *Service) ImportAttendance(userID int, rows []attendance.Row) (attendance.Result, error) {
	defer svc.lock(userID)()

	data, err := svc.load(userID)
	if err != nil {
		return attendance.Result{}, err
	}
	subjects, err := data.Subjects()
	if err != nil {
		return attendance.Result{}, err
	}
	tallies, err := data.Tallies()
	if err != nil {
		return attendance.Result{}, err
	}

	tallies, res, err := attendance.Ingest(tallies, rows, subjects)
	if err != nil {
		return attendance.Result{}, err
	}
	if res.Added == 0 {
		return res, nil
	}

	if data, err = data.withTallies(tallies); err != nil {
		return attendance.Result{}, err
	}
	if err = svc.repo.SaveData(userID, data); err != nil {
		return attendance.Result{}, errors.Wrap(err, "saving user data")
	}
	if svc.opts.Logger != nil {
		svc.opts.Logger.Info("attendance imported", map[string]interface{}{
			"user_id": userID,
			"added":   res.Added,
			"skipped": len(res.Skipped),
		})
	}
	return res, nil
}

func (svc *Service) subjectsAndTallies(userID int) ([]attendance.Subject, attendance.Tallies, error) {
	data, err := svc.load(userID)
	if err != nil {
		return nil, nil, err
	}
	subjects, err := data.Subjects()
	if err != nil {
		return nil, nil, err
	}
	tallies, err := data.Tallies()
	if err != nil {
		return nil, nil, err
	}
	return subjects, tallies, nil
}

// AttendancePlot renders the attendance percentage of every subject as a PNG bar chart.
// Subjects without recorded classes are plotted at 0.
func (svc *Service) AttendancePlot(userID int) ([]byte, error) {
	subjects, tallies, err := svc.subjectsAndTallies(userID)
	if err != nil {
		return nil, err
	}
	if len(subjects) == 0 || len(tallies) == 0 {
		return nil, ErrNoAttendance
	}

	bars := make([]Bar, len(subjects))
	for i, subj := range subjects {
		bars[i] = Bar{Label: subj.Name, Percentage: tallies[string(subj.ID)].Percentage()}
	}
	img, err := svc.opts.Plotter.PlotAttendance(bars)
	return img, errors.Wrap(err, "plotting attendance")
}

// AttendanceRisk assesses every subject with recorded classes, riskiest first.
func (svc *Service) AttendanceRisk(userID, daysLeft int) ([]risk.Assessment, error) {
	subjects, tallies, err := svc.subjectsAndTallies(userID)
	if err != nil {
		return nil, err
	}
	return svc.opts.Projector.AssessAll(subjects, tallies, daysLeft)
}

// StudyPlan recommends study hours for every subject until the exam and schedules them over a week.
func (svc *Service) StudyPlan(userID, daysToExam int) (StudyPlan, error) {
	data, err := svc.load(userID)
	if err != nil {
		return StudyPlan{}, err
	}
	subjects, err := data.Subjects()
	if err != nil {
		return StudyPlan{}, err
	}
	tallies, err := data.Tallies()
	if err != nil {
		return StudyPlan{}, err
	}
	sessions, err := data.StudySessions()
	if err != nil {
		return StudyPlan{}, err
	}

	plans, err := svc.opts.Optimizer.Plan(subjects, tallies, sessions, daysToExam)
	if err != nil {
		return StudyPlan{}, errors.Wrap(err, "planning study time")
	}
	return StudyPlan{Subjects: plans, Schedule: study.WeeklySchedule(plans, svc.opts.HoursPerDay)}, nil
}

func (svc *Service) PredictGrade(in study.GradeInput) study.GradePrediction {
	return svc.opts.Grades.Predict(in)
}
