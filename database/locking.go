package database

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Lock hängt eine Zeilensperre (clause.LockingStrengthUpdate oder ...Share) an die folgende Abfrage.
// Nur PostgreSQL bekommt die Klausel; SQLite serialisiert Schreibtransaktionen ohnehin.
func Lock(tx *gorm.DB, strength string) *gorm.DB {
	if tx.Dialector.Name() != "postgres" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: strength})
}
