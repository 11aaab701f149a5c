package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/focus-timer/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Location    *time.Location
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Location:    time.UTC,
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Location == nil {
		factory.Location = time.UTC
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLocation sets the reporting time zone handed to archivers.
func WithLocation(location *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Location = location
	}
}

// TimerServiceDeps captures dependencies for constructing a timer service.
type TimerServiceDeps struct {
	Sessions    application.SessionRepository
	Events      application.EventRepository
	Activity    application.ActivityRepository
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewArchiver builds an archiver over the supplied activity repository.
func (f *ServiceFactory) NewArchiver(activity application.ActivityRepository, logger *slog.Logger) *application.Archiver {
	return application.NewArchiverWithLogger(activity, f.Location, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), logger)
}

// NewTimerService builds a timer service and its archiver using the supplied
// dependencies combined with the factory defaults.
func (f *ServiceFactory) NewTimerService(deps TimerServiceDeps) *application.TimerService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	archiver := application.NewArchiverWithLogger(deps.Activity, f.Location, idGen, now, deps.Logger)
	return application.NewTimerServiceWithLogger(
		deps.Sessions,
		deps.Events,
		archiver,
		idGen,
		now,
		deps.Logger,
	)
}

// OwnerAuthServiceDeps captures dependencies for constructing an owner auth service.
type OwnerAuthServiceDeps struct {
	Credentials application.CredentialRepository
	Verify      application.SecretVerifier
	IDGenerator func() string
	Now         func() time.Time
	CacheTTL    time.Duration
	Logger      *slog.Logger
}

// NewOwnerAuthService builds an owner auth service using the supplied dependencies.
func (f *ServiceFactory) NewOwnerAuthService(deps OwnerAuthServiceDeps) *application.OwnerAuthService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewOwnerAuthServiceWithLogger(
		deps.Credentials,
		deps.Verify,
		idGen,
		now,
		deps.CacheTTL,
		deps.Logger,
	)
}
