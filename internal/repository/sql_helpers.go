package repository

import (
	"gorm.io/gorm/clause"
)

// lockForUpdateSkipLocked lets competing consumers skip rows another
// transaction is already claiming instead of blocking on them.
func lockForUpdateSkipLocked() clause.Locking {
	return clause.Locking{
		Strength: "UPDATE",
		Options:  "SKIP LOCKED",
	}
}
