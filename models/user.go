package models

import "time"

// User ist ein Nutzerprofil, identifiziert über die externe ID des Identity-Providers.
// Die Mengen (Favoriten, Likes, Dislikes) sind einzelne Kanten-Tabellen, keine Kopien.
type User struct {
	ID         uint      `json:"-" gorm:"primaryKey"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ExternalID string    `json:"external_id" gorm:"uniqueIndex;not null"`
	FullName   string    `json:"full_name"`
}

func (User) TableName() string { return "users" }

// FavoriteEntry ist eine Kante User -> EtdEntry in der Favoritenmenge.
type FavoriteEntry struct {
	UserID     uint      `gorm:"primaryKey;autoIncrement:false"`
	EtdEntryID uint      `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt  time.Time
}

func (FavoriteEntry) TableName() string { return "user_favorite_entries" }

// LikedComment ist eine Kante User -> ClaimComment in der Like-Menge.
type LikedComment struct {
	UserID         uint `gorm:"primaryKey;autoIncrement:false"`
	ClaimCommentID uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt      time.Time
}

func (LikedComment) TableName() string { return "user_liked_comments" }

// DislikedComment ist eine Kante User -> ClaimComment in der Dislike-Menge.
type DislikedComment struct {
	UserID         uint `gorm:"primaryKey;autoIncrement:false"`
	ClaimCommentID uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt      time.Time
}

func (DislikedComment) TableName() string { return "user_disliked_comments" }
