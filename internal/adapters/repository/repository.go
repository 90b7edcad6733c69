package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
)

// Open opens (creating if needed) the SQLite database at path and migrates
// the schema. Use ":memory:" for an ephemeral database.
func Open(path string) (*gorm.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	if err := db.AutoMigrate(&userModel{}, &conversationModel{}, &messageModel{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return db, nil
}

// Ping checks the database connection.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %s", entities.ErrNotFound, what, id)
	}
	return err
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var (
	_ ports.UserRepository         = (*UserRepo)(nil)
	_ ports.ConversationRepository = (*ConversationRepo)(nil)
	_ ports.MessageRepository      = (*MessageRepo)(nil)
)

// UserRepo stores accounts.
type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db} }

// Create inserts u and fills in its ID and CreatedAt.
func (r *UserRepo) Create(ctx context.Context, u *entities.User) error {
	m := userModel{PublicID: u.ID, Email: u.Email, Username: u.Username, PasswordHash: u.PasswordHash}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: email %s", entities.ErrDuplicate, u.Email)
		}
		return err
	}
	u.ID, u.CreatedAt = m.PublicID, m.CreatedAt
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*entities.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).Where("public_id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return m.toEntity(), nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&m).Error; err != nil {
		return nil, notFound(err, "user", email)
	}
	return m.toEntity(), nil
}

// ConversationRepo stores conversations.
type ConversationRepo struct{ db *gorm.DB }

func NewConversationRepo(db *gorm.DB) *ConversationRepo { return &ConversationRepo{db} }

func (r *ConversationRepo) Create(ctx context.Context, c *entities.Conversation) error {
	m := conversationModel{PublicID: c.ID, UserID: c.UserID, Title: c.Title}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	c.ID, c.CreatedAt = m.PublicID, m.CreatedAt
	return nil
}

func (r *ConversationRepo) Get(ctx context.Context, id string) (*entities.Conversation, error) {
	var m conversationModel
	if err := r.db.WithContext(ctx).Where("public_id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err, "conversation", id)
	}
	c := m.toEntity()
	return &c, nil
}

// ListByUser returns the user's conversations, newest first.
func (r *ConversationRepo) ListByUser(ctx context.Context, userID string) ([]entities.Conversation, error) {
	var ms []conversationModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]entities.Conversation, len(ms))
	for i := range ms {
		out[i] = ms[i].toEntity()
	}
	return out, nil
}

// MessageRepo stores the append-only message log.
type MessageRepo struct{ db *gorm.DB }

func NewMessageRepo(db *gorm.DB) *MessageRepo { return &MessageRepo{db} }

// Append stores msg. Timestamps are kept in UTC so they sort as stored.
func (r *MessageRepo) Append(ctx context.Context, msg *entities.Message) error {
	created := msg.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	m := messageModel{
		PublicID:       msg.ID,
		ConversationID: msg.ConversationID,
		UserID:         msg.UserID,
		Role:           msg.Role,
		Content:        msg.Content,
		CreatedAt:      created.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	msg.ID, msg.CreatedAt = m.PublicID, m.CreatedAt
	return nil
}

// ListByConversation returns messages by creation time, then insertion order.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID string) ([]entities.Message, error) {
	var ms []messageModel
	if err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Order("created_at ASC, id ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]entities.Message, len(ms))
	for i := range ms {
		out[i] = ms[i].toEntity()
	}
	return out, nil
}
