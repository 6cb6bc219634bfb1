package actors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/castingly/castingly-backend/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupActorsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Actor{}))
	return db
}

func seedActor(t *testing.T, db *gorm.DB, id, email string, meta string) {
	t.Helper()
	actor := models.Actor{ID: id, Email: email, Name: "Test " + id}
	if meta != "" {
		actor.Metadata = datatypes.JSON(meta)
	}
	require.NoError(t, db.Create(&actor).Error)
}

func TestRepositoryFinders(t *testing.T) {
	db := setupActorsTestDB(t)
	seedActor(t, db, "a1", "Ada@Example.com", "")
	seedActor(t, db, "a2", "grace@example.com", "")
	repo := NewRepository(db)
	ctx := context.Background()

	actor, err := repo.FindByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Ada@Example.com", actor.Email)

	byEmail, err := repo.FindByEmail(ctx, " ada@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "a1", byEmail.ID)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	emails, err := repo.EmailsByIDs(ctx, []string{"a1", "a2", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a1": "Ada@Example.com", "a2": "grace@example.com"}, emails)

	empty, err := repo.EmailsByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpdateAvatarMergesMetadata(t *testing.T) {
	db := setupActorsTestDB(t)
	seedActor(t, db, "a1", "ada@example.com", `{"bio":"hello","profile_image":"old"}`)
	repo := NewRepository(db)
	ctx := context.Background()

	url := "https://api.castingly.test/api/media/proxy/f1"
	require.NoError(t, repo.UpdateAvatar(ctx, "a1", url))

	actor, err := repo.FindByID(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, actor.AvatarURL)
	assert.Equal(t, url, *actor.AvatarURL)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(actor.Metadata, &meta))
	assert.Equal(t, "hello", meta["bio"])
	assert.Equal(t, url, meta["profile_image"])
	assert.Equal(t, url, meta["headshot_url"])
}

func TestUpdateAvatarMissingActor(t *testing.T) {
	db := setupActorsTestDB(t)
	repo := NewRepository(db)
	err := repo.UpdateAvatar(context.Background(), "ghost", "https://x")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
