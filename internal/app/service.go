package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/authpw"
	"taskboard/api/internal/config"
	"taskboard/api/internal/export"
	"taskboard/api/internal/ownership"
	"taskboard/api/internal/search"
	"taskboard/api/internal/session"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	Ping(context.Context) error
	CreateUser(context.Context, store.User) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)

	ListBoards(context.Context, string) ([]store.Board, error)
	GetBoard(context.Context, string) (store.Board, error)
	GetOwnedBoard(context.Context, string, string) (store.Board, error)
	InsertBoard(context.Context, store.Board) (store.Board, error)
	UpdateBoard(context.Context, string, string, store.BoardPatch) (store.Board, error)
	DeleteBoard(context.Context, string, string) (bool, error)
	GetBoardDetail(context.Context, string, string) (store.BoardDetail, error)

	ListLists(context.Context, string) ([]store.List, error)
	GetList(context.Context, string) (store.List, error)
	CountLists(context.Context, string) (int, error)
	AppendList(context.Context, store.List, *int) (store.List, error)
	UpdateList(context.Context, string, store.ListPatch) (store.List, error)
	RemoveList(context.Context, string) error
	MoveList(context.Context, store.ListMove) (store.List, error)

	ListCards(context.Context, string) ([]store.Card, error)
	GetCard(context.Context, string) (store.Card, error)
	CountCards(context.Context, string) (int, error)
	AppendCard(context.Context, store.Card, *int) (store.Card, error)
	UpdateCard(context.Context, string, store.CardPatch) (store.Card, error)
	ToggleCardCompleted(context.Context, string) (store.Card, error)
	RemoveCard(context.Context, string) error
	MoveCard(context.Context, store.CardMove) (store.Card, error)
	GetSearchCard(context.Context, string) (store.SearchCard, error)
}

type sessionStore interface {
	SaveRefreshSession(context.Context, string, store.User, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
}

type cardSearch interface {
	Search(context.Context, search.Query) search.Response
	IndexCard(search.CardRecord)
	DeleteCards(...string)
}

type boardExporter interface {
	Export(context.Context, export.Request) (*export.Result, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	passwords *authpw.Service
	guard     *ownership.Guard
	search    cardSearch
	exporter  boardExporter
	logger    logrus.FieldLogger
	validator *validator.Validate
	tracer    trace.Tracer
}

func New(
	cfg config.Config,
	dataStore *store.PostgresStore,
	sessions *session.RedisStore,
	searchService *search.Service,
	exportService *export.Service,
	logger logrus.FieldLogger,
) *Service {
	s := newService(cfg, dataStore, sessions, logger)
	if searchService != nil {
		s.search = searchService
	}
	if exportService != nil {
		s.exporter = exportService
	}
	return s
}

func newService(cfg config.Config, ds dataStore, sessions sessionStore, logger logrus.FieldLogger) *Service {
	return &Service{
		cfg:       cfg,
		store:     ds,
		sessions:  sessions,
		passwords: authpw.NewService(ds),
		guard:     ownership.NewGuard(ds),
		logger:    logger,
		validator: newValidator(),
		tracer:    otel.Tracer("taskboard/api/internal/app"),
	}
}

// Ping checks the health of service dependencies (database, etc.)
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (Session, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	if err := s.validate(input); err != nil {
		return Session{}, err
	}
	user, err := s.passwords.Register(ctx, authpw.RegisterRequest{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
	})
	switch {
	case errors.Is(err, authpw.ErrEmailTaken):
		return Session{}, domainError(KindConflict, "EMAIL_TAKEN", "User already exists with this email", nil)
	case errors.Is(err, authpw.ErrInvalidInput):
		return Session{}, domainError(KindValidationFailed, "VALIDATION_ERROR", err.Error(), nil)
	case err != nil:
		return Session{}, translate(err, "user")
	}
	s.logger.WithField("user_id", user.ID).Info("user registered")
	return s.issueSession(ctx, user)
}

func (s *Service) Login(ctx context.Context, input LoginInput) (Session, error) {
	input.Email = strings.TrimSpace(input.Email)
	if err := s.validate(input); err != nil {
		return Session{}, err
	}
	user, err := s.passwords.Login(ctx, input.Email, input.Password)
	if errors.Is(err, authpw.ErrInvalidCredentials) {
		return Session{}, domainError(KindUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	if err != nil {
		return Session{}, translate(err, "user")
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Session{}, unauthorized()
	}
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if errors.Is(err, session.ErrSessionNotFound) {
		return Session{}, unauthorized()
	}
	if err != nil {
		return Session{}, translate(err, "session")
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, translate(err, "session")
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.Name, user.Email, jti, s.cfg.AccessTTL)
	if err != nil {
		return Session{}, translate(err, "session")
	}

	refresh, err := auth.NewRefreshToken()
	if err != nil {
		return Session{}, translate(err, "session")
	}
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, time.Now().Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, translate(err, "session")
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Name,
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken resolves a bearer token to the principal behind it.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	session := Session{
		Token:    token,
		UserID:   claims.Subject,
		UserName: claims.Name,
		Email:    claims.Email,
		JTI:      claims.ID,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

func (s *Service) Logout(ctx context.Context, current Session, refreshToken string) error {
	if current.JTI != "" {
		if err := s.sessions.RevokeAccessToken(ctx, current.JTI, current.ExpiresAt); err != nil {
			s.logger.WithError(err).Warn("revoke access token")
		}
	}
	if refreshToken != "" {
		if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			s.logger.WithError(err).Warn("revoke refresh token")
		}
	}
	return nil
}

func (s *Service) Me(ctx context.Context, current Session) (store.User, error) {
	user, err := s.store.GetUserByID(ctx, current.UserID)
	if err != nil {
		return store.User{}, translate(err, "user")
	}
	return user, nil
}
