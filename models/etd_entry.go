package models

import (
	"time"
)

// EtdEntry repräsentiert einen katalogisierten Thesis-/Dissertations-Eintrag in der relationalen DB.
// Die durchsuchbaren Metadaten liegen getrennt im Suchindex (EtdEntryMeta) mit derselben ID.
type EtdEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	// Besitzer, nur während eines Rollbacks leer
	UserID *uint `json:"user_id,omitempty" gorm:"index"`

	Documents     []EtdDocument  `json:"documents" gorm:"foreignKey:EtdEntryID"`
	ClaimComments []ClaimComment `json:"-" gorm:"foreignKey:EtdEntryID"`
}

// Ready meldet, ob die Ingestion-Saga den Eintrag bis zum Dokument abgeschlossen hat.
// Einträge ohne Dokumente sind für Leser noch nicht vollständig.
func (e *EtdEntry) Ready() bool {
	return len(e.Documents) > 0
}

// TableName gibt explizit den Tabellennamen an.
func (EtdEntry) TableName() string {
	return "etd_entries"
}

// EtdDocument referenziert eine abgelegte Binärdatei eines EtdEntry.
type EtdDocument struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time `json:"created_at"`
	EtdEntryID uint      `json:"etd_entry_id" gorm:"index;not null"`
	Filename   string    `json:"filename" gorm:"not null"`
}

func (EtdDocument) TableName() string { return "etd_documents" }
