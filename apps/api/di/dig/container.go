package dig_container

import (
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/profile"
	"github.com/trezcool/mahudhurio/core/risk"
	"github.com/trezcool/mahudhurio/core/study"
	"github.com/trezcool/mahudhurio/core/user"
	"github.com/trezcool/mahudhurio/services/chart"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	"github.com/trezcool/mahudhurio/storage"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	repositories struct {
		dig.Out
		Users    user.Repository
		Profiles profile.Repository
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newStore(conf *core.Config, loggerParam DBLoggerParam) (*storage.Store, error) {
	store, err := storage.Open(conf)
	if err != nil {
		return nil, errors.Wrap(err, "setting up storage")
	}
	loggerParam.Logger.Info("storage ready", map[string]interface{}{"driver": store.Driver})
	return store, nil
}

func newRepositories(store *storage.Store) repositories {
	return repositories{Users: store.Users, Profiles: store.Profiles}
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	return validate
}

func newTokenVerifier(conf *core.Config) user.TokenVerifier {
	if conf.GoogleClientID == "" {
		return nil // google sign-in disabled
	}
	return user.NewGoogleVerifier(conf.GoogleClientID)
}

func newProjector(conf *core.Config, logger core.Logger) (*risk.Projector, error) {
	scorer, err := risk.TrainLogistic(conf.Seed)
	if err != nil {
		return nil, err
	}
	logger.Info("risk model trained", map[string]interface{}{"accuracy": scorer.Accuracy})
	p := risk.NewProjector(scorer)
	p.Threshold = conf.Attendance.Threshold
	return p, nil
}

func newOptimizer(conf *core.Config, logger core.Logger) (*study.Optimizer, error) {
	o, err := study.NewOptimizer(conf.Seed)
	if err != nil {
		return nil, err
	}
	logger.Info("study model trained", map[string]interface{}{"r2": o.R2()})
	return o, nil
}

func newGradePredictor(conf *core.Config) (*study.GradePredictor, error) {
	return study.NewGradePredictor(conf.Seed)
}

func newProfileService(
	conf *core.Config,
	logger core.Logger,
	repo profile.Repository,
	projector *risk.Projector,
	optimizer *study.Optimizer,
	grades *study.GradePredictor,
	plotter profile.Plotter,
) *profile.Service {
	return profile.NewService(repo, profile.Options{
		Projector:   projector,
		Optimizer:   optimizer,
		Grades:      grades,
		Plotter:     plotter,
		HoursPerDay: conf.Study.HoursPerDay,
		Logger:      logger,
	})
}

type NewConfigFunc func() *core.Config

// New returns a new dependency injection dig.Container
func New(newConfig NewConfigFunc) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStore))
	must(c.Provide(newRepositories))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newTokenVerifier))
	must(c.Provide(user.NewService))
	must(c.Provide(newProjector))
	must(c.Provide(newOptimizer))
	must(c.Provide(newGradePredictor))
	must(c.Provide(chart.NewAttendancePlotter, dig.As(new(profile.Plotter))))
	must(c.Provide(newProfileService))
	must(c.Provide(echoapi.NewConfiguredServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
