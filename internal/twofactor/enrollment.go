package twofactor

import (
	"strings"

	"github.com/khanghh/kattest/internal/store"
	"github.com/khanghh/kattest/params"
)

// Enrollment is a TOTP setup waiting for confirmation.
type Enrollment struct {
	UserID      uint   `redis:"user_id"`
	Secret      string `redis:"secret"`
	BackupCodes string `redis:"backup_codes"` // comma separated hashes
	CreatedAt   int64  `redis:"created_at"`
}

func (e *Enrollment) BackupCodeHashes() []string {
	if e.BackupCodes == "" {
		return nil
	}
	return strings.Split(e.BackupCodes, ",")
}

func newEnrollmentStore(storage store.Storage) *store.Store[Enrollment] {
	return store.New[Enrollment](storage, params.EnrollmentKeyPrefix)
}
