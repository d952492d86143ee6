package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// EtdEntryMeta ist die durchsuchbare Projektion eines EtdEntry.
// ID ist immer die ID des zugehörigen EtdEntry und wird nie selbst erzeugt.
type EtdEntryMeta struct {
	ID uint `json:"id" gorm:"primaryKey;autoIncrement:false"`

	Title               string     `json:"title"`
	DescriptionAbstract string     `json:"description_abstract" gorm:"type:text"`
	Type                string     `json:"type,omitempty" gorm:"index"`
	Subject             StringList `json:"subject"`

	ContributorAuthor           string     `json:"contributor_author"`
	ContributorCommitteeChair   StringList `json:"contributor_committeechair,omitempty"`
	ContributorCommitteeCoChair StringList `json:"contributor_committeecochair,omitempty"`
	ContributorCommitteeMember  StringList `json:"contributor_committeemember,omitempty"`
	ContributorDepartment       string     `json:"contributor_department"`

	DateAccessioned *time.Time `json:"date_accessioned,omitempty"`
	DateAvailable   *time.Time `json:"date_available,omitempty"`
	// Wird von der Ingestion-Saga gesetzt, nie vom Client
	DateIssued *time.Time `json:"date_issued,omitempty"`

	DegreeGrantor string `json:"degree_grantor,omitempty"`
	DegreeLevel   string `json:"degree_level,omitempty" gorm:"index"`
	DegreeName    string `json:"degree_name,omitempty"`

	IdentifierSourceURL string `json:"identifier_sourceurl,omitempty"`
	IdentifierURI       string `json:"identifier_uri,omitempty"`

	Publisher string `json:"publisher"`
	Rights    string `json:"rights,omitempty" gorm:"type:text"`
}

// TableName gibt explizit den Tabellennamen an (nur für das Postgres-Suchbackend).
func (EtdEntryMeta) TableName() string {
	return "etd_entry_metas"
}

// StringList ist eine JSON-Liste, die beim Einlesen auch einen einzelnen String akzeptiert.
// Exporte aus Repositorien liefern Felder wie subject mal als String, mal als Array.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*l = StringList{}
		} else {
			*l = StringList{single}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*l = list
	return nil
}

// Value speichert die Liste als JSON-Spalte, analog zu datatypes.JSONSlice.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return datatypes.JSONSlice[string](l).Value()
}

func (l *StringList) Scan(value any) error {
	return (*datatypes.JSONSlice[string])(l).Scan(value)
}

func (StringList) GormDataType() string {
	return datatypes.JSONSlice[string]{}.GormDataType()
}

func (StringList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	return datatypes.JSONSlice[string]{}.GormDBDataType(db, field)
}
