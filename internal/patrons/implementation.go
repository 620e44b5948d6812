package patrons

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"biblioteca/internal/models"
	"biblioteca/internal/storage"
	"biblioteca/pkg/eventstore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// service implements the Service interface.
type service struct {
	store       storage.PatronStore
	events      eventstore.Appender
	logger      *zap.Logger
	secret      []byte
	rateLimiter *rate.Limiter
}

// NewService creates a new patrons service instance. secret signs the
// bearer tokens handed out on login.
func NewService(store storage.PatronStore, events eventstore.Appender, logger *zap.Logger, secret []byte) Service {
	return &service{
		store:       store,
		events:      events,
		logger:      logger,
		secret:      secret,
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute), 5), // 5 requests per minute
	}
}

func (s *service) Register(ctx context.Context, email, name, password string) (*models.Patron, error) {
	if !s.rateLimiter.Allow() {
		return nil, fmt.Errorf("rate limit exceeded")
	}
	if len(password) < 8 {
		return nil, &storage.ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}

	passwordHash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	patron := &models.Patron{
		ID:     uuid.New(),
		Email:  email,
		Name:   name,
		Status: models.PatronActive,
	}
	cred := &models.Credential{
		PatronID:     patron.ID,
		PasswordHash: passwordHash,
		Salt:         salt,
	}
	if err := s.store.CreatePatron(ctx, patron, cred); err != nil {
		return nil, fmt.Errorf("create patron: %w", err)
	}

	jsonData, err := json.Marshal(PatronRegisteredEvent{ID: patron.ID, Email: patron.Email, Name: patron.Name})
	if err == nil {
		event := eventstore.Event{
			AggregateID:   patron.ID,
			AggregateType: "patron",
			EventType:     "PatronRegistered",
			EventData:     jsonData,
			Version:       1,
		}
		if appendErr := s.events.AppendEvents(ctx, patron.ID, "patron", 0, []eventstore.Event{event}); appendErr != nil {
			s.logger.Warn("append audit event", zap.String("patron_id", patron.ID.String()), zap.Error(appendErr))
		}
	}

	return patron, nil
}

func (s *service) Authenticate(ctx context.Context, email, password string) (*models.Patron, string, error) {
	if !s.rateLimiter.Allow() {
		return nil, "", fmt.Errorf("rate limit exceeded")
	}

	patron, err := s.store.GetPatronByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("authentication failed: %w", err)
	}

	cred, err := s.store.GetCredential(ctx, patron.ID)
	if err != nil {
		return nil, "", fmt.Errorf("authentication failed: %w", err)
	}

	ok, err := verifyPassword(password, cred.Salt, cred.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("authentication failed: %w", err)
	}
	if !ok {
		return nil, "", storage.ErrNotFound
	}

	token, err := IssueToken(s.secret, patron.ID, time.Now().UTC())
	if err != nil {
		return nil, "", fmt.Errorf("sign token: %w", err)
	}
	return patron, token, nil
}

func (s *service) GetPatron(ctx context.Context, id uuid.UUID) (*models.Patron, error) {
	return s.store.GetPatron(ctx, id)
}
