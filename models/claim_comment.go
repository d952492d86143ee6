package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Reproducibility gibt an, ob ein Kommentator die Aussage der Arbeit reproduzieren konnte.
type Reproducibility int

const (
	ReproducibleNo Reproducibility = iota
	ReproduciblePartially
	ReproducibleYes
)

func (r Reproducibility) String() string {
	switch r {
	case ReproducibleNo:
		return "NO"
	case ReproduciblePartially:
		return "PARTIALLY"
	case ReproducibleYes:
		return "YES"
	default:
		return fmt.Sprintf("Reproducibility(%d)", int(r))
	}
}

// Valid meldet, ob r einer der drei definierten Werte ist.
func (r Reproducibility) Valid() bool {
	return r >= ReproducibleNo && r <= ReproducibleYes
}

// MarshalText schreibt NO, PARTIALLY oder YES.
func (r Reproducibility) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid reproducibility %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Reproducibility) UnmarshalText(text []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(text))) {
	case "NO":
		*r = ReproducibleNo
	case "PARTIALLY":
		*r = ReproduciblePartially
	case "YES":
		*r = ReproducibleYes
	default:
		return fmt.Errorf("unknown reproducibility %q", text)
	}
	return nil
}

// UnmarshalJSON nimmt neben dem Namen auch die Ordinalzahl an.
func (r *Reproducibility) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		return r.UnmarshalText([]byte(name))
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("reproducibility must be NO, PARTIALLY or YES: %w", err)
	}
	*r = Reproducibility(n)
	return nil
}

// ClaimComment ist ein Kommentar zu einer Aussage einer Arbeit, inklusive Belegen.
// Likes ist ein abgeleiteter Zähler: Anzahl Likes minus Anzahl Dislikes.
type ClaimComment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	EtdEntryID uint `json:"etd_entry_id" gorm:"index;not null"`
	UserID     uint `json:"user_id" gorm:"index;not null"`

	Claim              string          `json:"claim" gorm:"type:text;not null"`
	Reproducible       Reproducibility `json:"reproducible" gorm:"not null;default:0"`
	ProofSourceCodeURL string          `json:"proof_source_code_url"`
	ProofDatasetURL    string          `json:"proof_dataset_url"`
	Results            string          `json:"results" gorm:"type:text"`

	Likes int64 `json:"likes" gorm:"not null;default:0"`
}

func (ClaimComment) TableName() string { return "claim_comments" }

// LikeStatus ist der Reaktionszustand eines Users zu einem Kommentar.
type LikeStatus string

const (
	LikeStatusNone     LikeStatus = "NONE"
	LikeStatusLiked    LikeStatus = "LIKED"
	LikeStatusDisliked LikeStatus = "DISLIKED"
)
