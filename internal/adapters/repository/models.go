// Package repository persists accounts, conversations and messages with gorm.
package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
)

// userModel keeps a numeric primary key for ordering and exposes PublicID.
type userModel struct {
	ID           uint   `gorm:"primaryKey"`
	PublicID     string `gorm:"uniqueIndex;size:64"`
	Email        string `gorm:"uniqueIndex;size:255;not null"`
	Username     string `gorm:"size:255"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
}

func (userModel) TableName() string { return "users" }

func (m *userModel) BeforeCreate(*gorm.DB) error {
	if m.PublicID == "" {
		m.PublicID = uuid.NewString()
	}
	return nil
}

func (m *userModel) toEntity() *entities.User {
	return &entities.User{
		ID:           m.PublicID,
		Email:        m.Email,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}

type conversationModel struct {
	ID        uint   `gorm:"primaryKey"`
	PublicID  string `gorm:"uniqueIndex;size:64"`
	UserID    string `gorm:"index;size:64;not null"`
	Title     string `gorm:"size:255"`
	CreatedAt time.Time
}

func (conversationModel) TableName() string { return "conversations" }

func (m *conversationModel) BeforeCreate(*gorm.DB) error {
	if m.PublicID == "" {
		m.PublicID = uuid.NewString()
	}
	return nil
}

func (m *conversationModel) toEntity() entities.Conversation {
	return entities.Conversation{
		ID:        m.PublicID,
		UserID:    m.UserID,
		Title:     m.Title,
		CreatedAt: m.CreatedAt,
	}
}

type messageModel struct {
	ID             uint   `gorm:"primaryKey"`
	PublicID       string `gorm:"uniqueIndex;size:64"`
	ConversationID string `gorm:"index;size:64;not null"`
	UserID         string `gorm:"size:64"`
	Role           string `gorm:"size:16;not null"`
	Content        string `gorm:"type:text"`
	CreatedAt      time.Time
}

func (messageModel) TableName() string { return "messages" }

func (m *messageModel) BeforeCreate(*gorm.DB) error {
	if m.PublicID == "" {
		m.PublicID = uuid.NewString()
	}
	return nil
}

func (m *messageModel) toEntity() entities.Message {
	return entities.Message{
		ID:             m.PublicID,
		ConversationID: m.ConversationID,
		UserID:         m.UserID,
		Role:           m.Role,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}
