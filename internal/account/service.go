package account

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/event"
	"github.com/victornm/quizdesk/internal/store"
)

const (
	notBlankTag = "notblank"
	maxBytesTag = "maxbytes"

	// decoyPassword is shorter than any registrable password, so it never matches.
	decoyPassword = "invalid"
)

var (
	ErrPasswordMismatch   = errors.New(errors.CodeInvalidArgument, errors.WithMessagef("Password does not match!"))
	ErrPasswordTooShort   = errors.New(errors.CodeInvalidArgument, errors.WithMessagef("Password is too short!"))
	ErrPasswordTooLong    = errors.New(errors.CodeInvalidArgument, errors.WithMessagef("Password is too long!"))
	ErrUsernameRequired   = errors.New(errors.CodeInvalidArgument, errors.WithMessagef("Username is required!"))
	ErrUsernameTaken      = errors.New(errors.CodeAlreadyExists, errors.WithMessagef("This username is chosen!"))
	ErrInvalidCredentials = errors.New(errors.CodeUnauthenticated, errors.WithMessagef("Invalid username or/and password"))
)

type Config struct {
	Store      store.Store
	EventBus   *event.Bus
	BcryptCost int
	Now        func() time.Time
}

type Service struct {
	store    store.Store
	eb       *event.Bus
	cost     int
	now      func() time.Time
	validate *validator.Validate
	decoy    []byte
}

func NewService(c Config) (*Service, error) {
	s := &Service{
		store:    c.Store,
		eb:       c.EventBus,
		cost:     c.BcryptCost,
		now:      c.Now,
		validate: validator.New(),
	}
	if s.cost == 0 {
		s.cost = bcrypt.DefaultCost
	}
	if s.now == nil {
		s.now = time.Now
	}

	if err := s.validate.RegisterValidation(notBlankTag, notBlank); err != nil {
		return nil, fmt.Errorf("register %s validation: %w", notBlankTag, err)
	}
	if err := s.validate.RegisterValidation(maxBytesTag, maxBytes); err != nil {
		return nil, fmt.Errorf("register %s validation: %w", maxBytesTag, err)
	}

	decoy, err := bcrypt.GenerateFromPassword([]byte(decoyPassword), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash decoy password: %w", err)
	}
	s.decoy = decoy

	return s, nil
}

func notBlank(fl validator.FieldLevel) bool {
	str, ok := fl.Field().Interface().(string)
	return ok && strings.TrimSpace(str) != ""
}

// maxBytes limits the encoded length of a string, unlike max which counts runes.
func maxBytes(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= n
}

type RegisterRequest struct {
	Name         string
	Username     string `validate:"notblank"`
	// bcrypt only hashes the first 72 bytes.
	Password     string `validate:"min=8,maxbytes=72"`
	Confirmation string `validate:"eqfield=Password"`
}

// Register creates an account. Validation errors are reported one at a time:
// a confirmation mismatch first, then the password length, then a blank username.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{
		Name:         req.Name,
		Username:     req.Username,
		PasswordHash: string(hash),
		CreateTime:   s.now(),
	}
	err = s.store.CreateUser(ctx, u)
	if store.IsConflict(err) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, err
	}

	s.eb.Publish(ctx, domain.EventUserRegistered{User: *u})

	return u, nil
}

func (s *Service) check(req RegisterRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	// field -> failed tag
	failed := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		failed[fe.Field()] = fe.Tag()
	}

	switch {
	case failed["Confirmation"] != "":
		return ErrPasswordMismatch
	case failed["Password"] == maxBytesTag:
		return ErrPasswordTooLong
	case failed["Password"] != "":
		return ErrPasswordTooShort
	case failed["Username"] != "":
		return ErrUsernameRequired
	default:
		return errors.New(errors.CodeInvalidArgument, errors.WithCause(err))
	}
}

// Login checks a username and password. It compares against a decoy hash
// when the username is unknown, so both failures take the same time and
// return the same ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*domain.User, error) {
	u, err := s.store.FindUserByUsername(ctx, username)
	if err != nil && !store.IsNotFound(err) {
		return nil, err
	}

	hash := s.decoy
	if u != nil {
		hash = []byte(u.PasswordHash)
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || u == nil {
		return nil, ErrInvalidCredentials
	}

	s.eb.Publish(ctx, domain.EventUserLoggedIn{User: *u})

	return u, nil
}
