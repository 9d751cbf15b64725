package storage

import (
	"context"
	"errors"
	"fmt"
	"identityradio/backend/internal/changefeed"
	"identityradio/backend/internal/models"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ErrNotFound is returned by Get* lookups when the row does not exist.
var ErrNotFound = errors.New("record not found")

// Storage is the data gateway used by the services and handlers.
type Storage interface {
	FindChatUserByIP(ctx context.Context, ip string) (*models.ChatUser, error)
	GetChatUser(ctx context.Context, id string) (*models.ChatUser, error)
	CreateChatUser(ctx context.Context, user *models.ChatUser) error
	TouchChatUser(ctx context.Context, id, country string) (*models.ChatUser, error)

	ListMessages(ctx context.Context, limit int) ([]models.ChatMessage, error)
	GetMessage(ctx context.Context, id string) (*models.ChatMessage, error)
	CreateMessage(ctx context.Context, msg *models.ChatMessage) error
	HideMessage(ctx context.Context, id string) error

	ListSongRequests(ctx context.Context) ([]models.SongRequest, error)
	GetSongRequest(ctx context.Context, id string) (*models.SongRequest, error)
	CreateSongRequest(ctx context.Context, req *models.SongRequest) error
	MarkSongPlayed(ctx context.Context, id string, at time.Time) (*models.SongRequest, error)
	DeleteSongRequest(ctx context.Context, id string) error

	GetActivePoll(ctx context.Context) (*models.PollQuestion, error)
	GetPoll(ctx context.Context, id string) (*models.PollQuestion, error)
	CreatePoll(ctx context.Context, poll *models.PollQuestion) error
	VotePoll(ctx context.Context, pollID string, optionID int) (*models.PollQuestion, error)
	MarkVoted(ctx context.Context, pollID, voterKey string) (bool, error)
	UnmarkVoted(ctx context.Context, pollID, voterKey string)

	CreateAuthUser(ctx context.Context, user *models.AuthUser) error
	FindAuthUserByEmail(ctx context.Context, email string) (*models.AuthUser, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
	GrantAdmin(ctx context.Context, userID string) error
	RevokeAdmin(ctx context.Context, userID string) error

	CreateReport(ctx context.Context, report *models.MessageReport) (int, error)
	HasReported(ctx context.Context, messageID, reporterID string) (bool, error)
	ListReports(ctx context.Context) ([]models.MessageReport, error)
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Feed  changefeed.Feed

	// votes використовується, коли Redis не налаштовано (admin CLI, dev з sqlite)
	votesMu sync.Mutex
	votes   map[string]struct{}
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client, feed changefeed.Feed) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Feed:  feed,
		votes: make(map[string]struct{}),
	}
}

// Open connects to the database named by dsn. "sqlite://<path>" selects the
// sqlite driver; anything else is handed to the postgres driver.
func Open(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if path, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		dialector = sqlite.Open(path)
	} else {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates all tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ChatUser{},
		&models.ChatMessage{},
		&models.MessageReport{},
		&models.SongRequest{},
		&models.PollQuestion{},
		&models.AuthUser{},
		&models.AdminUser{},
	)
}

// publish повідомляє підписників про зміну. Помилка публікації не скасовує запис.
func (s *Service) publish(ctx context.Context, table, kind, id string) {
	if s.Feed == nil {
		return
	}
	ev := models.ChangeEvent{Table: table, Type: kind, ID: id, At: time.Now().UTC()}
	if err := s.Feed.Publish(ctx, ev); err != nil {
		log.Printf("ERROR: Failed to publish %s %s/%s: %v", kind, table, id, err)
	}
}

// --- Chat users ---

// FindChatUserByIP повертає nil, nil якщо користувача з таким IP ще немає.
func (s *Service) FindChatUserByIP(ctx context.Context, ip string) (*models.ChatUser, error) {
	var user models.ChatUser
	err := s.DB.WithContext(ctx).Where("ip_address = ?", ip).Order("last_seen desc").First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Printf("ERROR: Failed to find chat user for ip %s: %v", ip, err)
		return nil, err
	}
	return &user, nil
}

func (s *Service) GetChatUser(ctx context.Context, id string) (*models.ChatUser, error) {
	var user models.ChatUser
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateChatUser inserts a new chat identity. Usernames are not checked for
// uniqueness.
func (s *Service) CreateChatUser(ctx context.Context, user *models.ChatUser) error {
	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		log.Printf("ERROR: Failed to create chat user %q: %v", user.Username, err)
		return err
	}
	s.publish(ctx, models.TableChatUsers, models.ChangeInsert, user.ID)
	return nil
}

// TouchChatUser marks the user online and refreshes last_seen. An empty
// country keeps the stored one.
func (s *Service) TouchChatUser(ctx context.Context, id, country string) (*models.ChatUser, error) {
	updates := map[string]interface{}{
		"status":    models.StatusOnline,
		"last_seen": time.Now(),
	}
	if country != "" {
		updates["country"] = country
	}

	res := s.DB.WithContext(ctx).Model(&models.ChatUser{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	s.publish(ctx, models.TableChatUsers, models.ChangeUpdate, id)
	return s.GetChatUser(ctx, id)
}

// --- Chat messages ---

// ListMessages повертає останні limit повідомлень у порядку created_at ASC.
func (s *Service) ListMessages(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	q := s.DB.WithContext(ctx).Preload("User").Where("hidden = ?", false).Order("created_at desc").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&messages).Error; err != nil {
		log.Printf("ERROR: Failed to list chat messages: %v", err)
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// GetMessage returns a visible message with its author joined.
func (s *Service) GetMessage(ctx context.Context, id string) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	err := s.DB.WithContext(ctx).Preload("User").Where("id = ? AND hidden = ?", id, false).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *Service) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		log.Printf("ERROR: Failed to save message from %s: %v", msg.UserID, err)
		return err
	}
	s.publish(ctx, models.TableChatMessages, models.ChangeInsert, msg.ID)
	return nil
}

// HideMessage ховає повідомлення. Для підписників це виглядає як DELETE.
func (s *Service) HideMessage(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Model(&models.ChatMessage{}).Where("id = ?", id).Update("hidden", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.publish(ctx, models.TableChatMessages, models.ChangeDelete, id)
	return nil
}

// --- Song requests ---

func (s *Service) ListSongRequests(ctx context.Context) ([]models.SongRequest, error) {
	var requests []models.SongRequest
	if err := s.DB.WithContext(ctx).Order("requested_at desc").Order("id desc").Find(&requests).Error; err != nil {
		log.Printf("ERROR: Failed to list song requests: %v", err)
		return nil, err
	}
	return requests, nil
}

func (s *Service) GetSongRequest(ctx context.Context, id string) (*models.SongRequest, error) {
	var req models.SongRequest
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Service) CreateSongRequest(ctx context.Context, req *models.SongRequest) error {
	if err := s.DB.WithContext(ctx).Create(req).Error; err != nil {
		log.Printf("ERROR: Failed to save song request %q: %v", req.Title, err)
		return err
	}
	s.publish(ctx, models.TableSongRequests, models.ChangeInsert, req.ID)
	return nil
}

// MarkSongPlayed is a conditional update: only pending rows move to played,
// so played -> pending can never happen here.
func (s *Service) MarkSongPlayed(ctx context.Context, id string, at time.Time) (*models.SongRequest, error) {
	res := s.DB.WithContext(ctx).Model(&models.SongRequest{}).
		Where("id = ? AND status = ?", id, models.SongPending).
		Updates(map[string]interface{}{
			"status":    models.SongPlayed,
			"played_at": at,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		// Або запису немає, або він вже зіграний
		if _, err := s.GetSongRequest(ctx, id); err != nil {
			return nil, err
		}
		return nil, models.ErrInvalidTransition
	}

	s.publish(ctx, models.TableSongRequests, models.ChangeUpdate, id)
	return s.GetSongRequest(ctx, id)
}

func (s *Service) DeleteSongRequest(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.SongRequest{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.publish(ctx, models.TableSongRequests, models.ChangeDelete, id)
	return nil
}

// --- Admin ---

func (s *Service) CreateAuthUser(ctx context.Context, user *models.AuthUser) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return s.DB.WithContext(ctx).Create(user).Error
}

// FindAuthUserByEmail повертає nil, nil якщо акаунта немає.
func (s *Service) FindAuthUserByEmail(ctx context.Context, email string) (*models.AuthUser, error) {
	var user models.AuthUser
	err := s.DB.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.AdminUser{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) GrantAdmin(ctx context.Context, userID string) error {
	admin := models.AdminUser{UserID: userID}
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).FirstOrCreate(&admin).Error; err != nil {
		return err
	}
	s.publish(ctx, models.TableAdminUsers, models.ChangeInsert, admin.ID)
	return nil
}

func (s *Service) RevokeAdmin(ctx context.Context, userID string) error {
	res := s.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.AdminUser{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.publish(ctx, models.TableAdminUsers, models.ChangeDelete, userID)
	return nil
}

// --- Reports ---

// CreateReport saves the report and returns the accumulated weight of all
// reports against the same message. A second report by the same reporter
// fails with models.ErrAlreadyReported.
func (s *Service) CreateReport(ctx context.Context, report *models.MessageReport) (int, error) {
	var total int
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(report).Error; err != nil {
			return err
		}
		return tx.Model(&models.MessageReport{}).
			Where("message_id = ?", report.MessageID).
			Select("COALESCE(SUM(weight), 0)").
			Scan(&total).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return 0, models.ErrAlreadyReported
	}
	if err != nil {
		log.Printf("ERROR: Failed to save report for message %s: %v", report.MessageID, err)
		return 0, err
	}
	return total, nil
}

func (s *Service) HasReported(ctx context.Context, messageID, reporterID string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.MessageReport{}).
		Where("message_id = ? AND reporter_id = ?", messageID, reporterID).
		Count(&count).Error
	return count > 0, err
}

func (s *Service) ListReports(ctx context.Context) ([]models.MessageReport, error) {
	var reports []models.MessageReport
	if err := s.DB.WithContext(ctx).Order("created_at desc").Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}
