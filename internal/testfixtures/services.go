package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/rendez-vous/internal/activity"
	"github.com/example/rendez-vous/internal/application"
	"github.com/example/rendez-vous/internal/auth"
	"github.com/example/rendez-vous/internal/groups"
	"github.com/example/rendez-vous/internal/persistence"
	"github.com/example/rendez-vous/internal/scheduling"
)

// Identifier kinds handed out by the factory.
const (
	KindRendezVous = "rdv"
	KindMember     = "member"
	KindActivity   = "activity"
)

// TokenSecret signs the session tokens of factory built auth services.
const TokenSecret = "test-secret-with-enough-entropy"

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator()
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

// WithLogger sets the logger handed to every service.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// Services is the wired service graph over one harness.
type Services struct {
	RendezVous *application.RendezVousService
	Members    *application.MemberService
	Groups     *application.GroupService
	Auth       *application.AuthService
	Publisher  *activity.Publisher
	Policy     *groups.Policy
	Tokens     *auth.TokenService
}

// RendezVousServiceDeps captures the overrides for a rendez-vous service.
type RendezVousServiceDeps struct {
	RendezVous persistence.RendezVousRepository
	Members    application.MemberDirectory
	Policy     scheduling.SchedulingPolicy
	Publisher  application.EventPublisher
	Engine     scheduling.Config
	MaxRetries int
}

// NewRendezVousService builds a rendez-vous service whose engine uses the
// factory clock and ids unless deps names its own.
func (f *ServiceFactory) NewRendezVousService(deps RendezVousServiceDeps) *application.RendezVousService {
	engine := deps.Engine
	if engine.IDGenerator == nil {
		engine.IDGenerator = f.IDGenerator.For(KindRendezVous)
	}
	if engine.Now == nil {
		engine.Now = f.Clock.NowFunc()
	}
	return application.NewRendezVousService(application.RendezVousServiceDeps{
		RendezVous: deps.RendezVous,
		Members:    deps.Members,
		Policy:     deps.Policy,
		Publisher:  deps.Publisher,
		Engine:     engine,
		MaxRetries: deps.MaxRetries,
		Logger:     f.Logger,
	})
}

// NewMemberService builds a member service. Passwords are stored as
// "hash:"+password so tests stay fast.
func (f *ServiceFactory) NewMemberService(members persistence.MemberRepository) *application.MemberService {
	return application.NewMemberService(members, PlainHash, f.IDGenerator.For(KindMember), f.Clock.NowFunc(), f.Logger)
}

// PlainHash is a reversible stand-in for argon2id.
func PlainHash(password string) (string, error) {
	return "hash:" + password, nil
}

// PlainVerify accepts passwords hashed by PlainHash.
func PlainVerify(hash, password string) error {
	if hash != "hash:"+password {
		return auth.ErrPasswordMismatch
	}
	return nil
}

// NewServices wires every service over the harness the way the server does.
func (f *ServiceFactory) NewServices(h *SQLiteHarness) (*Services, error) {
	tokens, err := auth.NewTokenService(TokenSecret, time.Hour, f.Clock.NowFunc())
	if err != nil {
		return nil, err
	}
	policy := groups.NewPolicy(h.Groups, f.Logger)
	publisher := activity.NewPublisher(h.Activities, h.Notifications, policy,
		activity.WithIDGenerator(f.IDGenerator.For(KindActivity)),
		activity.WithClock(f.Clock.NowFunc()),
		activity.WithLogger(f.Logger),
	)
	return &Services{
		RendezVous: f.NewRendezVousService(RendezVousServiceDeps{
			RendezVous: h.RendezVous,
			Members:    h.Members,
			Policy:     policy,
			Publisher:  publisher,
			MaxRetries: 2,
		}),
		Members:   f.NewMemberService(h.Members),
		Groups:    application.NewGroupService(h.Groups, f.Clock.NowFunc(), f.Logger),
		Auth:      application.NewAuthService(h.Members, tokens, PlainVerify, f.Logger),
		Publisher: publisher,
		Policy:    policy,
		Tokens:    tokens,
	}, nil
}
