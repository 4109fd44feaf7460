package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/negotiation"
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

// SessionDates календарные дни сессий коуча, по которым база проверяет дневной лимит
type SessionDates interface {
	RecomputeLocalDates(ctx context.Context, coachID int64, from time.Time) (int64, error)
}

type UserService struct {
	userRepo        UserStore
	dates           SessionDates
	tx              negotiation.Transactor
	defaultTimezone string
	now             func() time.Time
	logger          *zap.Logger
}

func NewUserService(userRepo UserStore, dates SessionDates, tx negotiation.Transactor, defaultTimezone string, logger *zap.Logger) *UserService {
	return &UserService{
		userRepo:        userRepo,
		dates:           dates,
		tx:              tx,
		defaultTimezone: defaultTimezone,
		now:             time.Now,
		logger:          logger,
	}
}

// RegisterUser регистрирует или обновляет пользователя
func (s *UserService) RegisterUser(ctx context.Context, telegramID int64, username, firstName, lastName, languageCode string) (*model.User, error) {
	// Проверяем существует ли пользователь
	existingUser, err := s.userRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	// Если пользователь уже существует, обновляем данные
	if existingUser != nil {
		existingUser.Username = username
		existingUser.FirstName = firstName
		existingUser.LastName = lastName
		existingUser.LanguageCode = languageCode

		err = s.userRepo.Update(ctx, existingUser)
		if err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}

		return existingUser, nil
	}

	// Создаём нового пользователя
	user := &model.User{
		TelegramID:   telegramID,
		Username:     username,
		FirstName:    firstName,
		LastName:     lastName,
		LanguageCode: languageCode,
		IsCoach:      false, // По умолчанию клиент
		Timezone:     s.defaultTimezone,
	}

	err = s.userRepo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("New user registered",
		zap.Int64("user_id", user.ID),
		zap.Int64("telegram_id", telegramID),
		zap.String("username", username),
	)

	return user, nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.userRepo.GetByTelegramID(ctx, telegramID)
}

// GetByID получает пользователя по ID
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// MakeCoach делает пользователя коучем
func (s *UserService) MakeCoach(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.mustGet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsCoach {
		return user, nil
	}

	user.IsCoach = true
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.Info("User became coach",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
	)

	return user, nil
}

// SetTimezone меняет часовой пояс; календарные дни коуча считаются в нём.
// У коуча в той же транзакции пересчитываются дни будущих сессий. Если после этого
// у клиента оказываются две сессии в один день, возвращается ErrTimezoneConflict.
func (s *UserService) SetTimezone(ctx context.Context, userID int64, tz string) (*model.User, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidTimezone)
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}

	user, err := s.mustGet(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Timezone = tz
	var recomputed int64
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.userRepo.Update(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if !user.IsCoach {
			return nil
		}
		n, err := s.dates.RecomputeLocalDates(ctx, user.ID, s.now())
		if errors.Is(err, model.ErrSlotTaken) {
			return fmt.Errorf("%w: %w", ErrTimezoneConflict, err)
		}
		recomputed = n
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Timezone changed",
		zap.Int64("user_id", user.ID),
		zap.String("timezone", tz),
		zap.Int64("sessions_recomputed", recomputed),
	)
	return user, nil
}

// FindClient ищет клиента по "@username" или внутреннему ID
func (s *UserService) FindClient(ctx context.Context, ref string) (*model.User, error) {
	ref = strings.TrimSpace(ref)

	var (
		user *model.User
		err  error
	)
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		user, err = s.userRepo.GetByID(ctx, id)
	} else {
		user, err = s.userRepo.GetByUsername(ctx, strings.TrimPrefix(ref, "@"))
	}
	if err != nil {
		return nil, fmt.Errorf("find client: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, ref)
	}
	return user, nil
}

func (s *UserService) mustGet(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}
	return user, nil
}
