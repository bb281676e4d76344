package profiles_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"socialprofiles/backend/internal/models"
	"socialprofiles/backend/internal/profiles"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fixture struct {
	db        *gorm.DB
	ledger    *profiles.Ledger
	directory *profiles.Directory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A second connection would open a different in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Profile{}, &models.Relationship{}))

	log := zap.NewNop()
	ledger := profiles.NewLedger(db, log)
	return &fixture{
		db:        db,
		ledger:    ledger,
		directory: profiles.NewDirectory(db, ledger, log),
	}
}

// addProfile creates a user and its profile. Names are "first last"; username is derived from them.
func (f *fixture) addProfile(t *testing.T, first, last string) (profiles.Actor, models.Profile) {
	t.Helper()

	username := strings.ToLower(first + last)
	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	require.NoError(t, f.db.Create(&user).Error)

	profile := models.Profile{
		UserID:    user.ID,
		FirstName: first,
		LastName:  last,
		Slug:      fmt.Sprintf("%s-%d", username, user.ID),
	}
	require.NoError(t, f.db.Create(&profile).Error)
	profile.User = user

	return profiles.Actor{UserID: user.ID}, profile
}

func (f *fixture) relationship(t *testing.T, senderID, receiverID uint) (models.Relationship, bool) {
	t.Helper()

	var rels []models.Relationship
	require.NoError(t, f.db.Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).Find(&rels).Error)
	if len(rels) == 0 {
		return models.Relationship{}, false
	}
	return rels[0], true
}

func profileIDs(ps []models.Profile) []uint {
	ids := make([]uint, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids
}

func assertKind(t *testing.T, want profiles.Kind, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, profiles.KindOf(err), "unexpected error kind for: %v", err)
}

func ctx() context.Context {
	return context.Background()
}
