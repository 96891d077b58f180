package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franckalain/scaneats/internal/models"
)

func openTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "scaneats.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedUser(t *testing.T, db *SQLiteDB) models.UserProfile {
	t.Helper()
	p := models.UserProfile{Name: "Ada", Age: 30, WeightKg: 70, HeightCm: 175, Gender: models.GenderMale}
	require.NoError(t, db.UpsertUser(context.Background(), &p))
	require.NotEmpty(t, p.UserID)
	return p
}

func TestUserRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	p := seedUser(t, db)

	got, err := db.GetUserProfile(ctx, p.UserID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	p.WeightKg = 72.5
	require.NoError(t, db.UpsertUser(ctx, &p))
	got, err = db.GetUserProfile(ctx, p.UserID)
	require.NoError(t, err)
	assert.Equal(t, 72.5, got.WeightKg)
}

func TestUpsertUserStoresCanonicalGender(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	p := models.UserProfile{Age: 30, WeightKg: 70, HeightCm: 175, Gender: " Male"}
	require.NoError(t, db.UpsertUser(ctx, &p))
	assert.Equal(t, models.GenderMale, p.Gender)

	got, err := db.GetUserProfile(ctx, p.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.GenderMale, got.Gender)
}

func TestUpsertUserRejectsInvalidProfile(t *testing.T) {
	db := openTestDB(t)
	p := models.UserProfile{Age: 5, WeightKg: 70, HeightCm: 175, Gender: models.GenderMale}
	err := db.UpsertUser(context.Background(), &p)
	assert.ErrorContains(t, err, "invalid profile")
	assert.Empty(t, p.UserID)
}

func TestGetUserProfileNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetUserProfile(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestInsertAndGetEntry(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db)

	entry := &models.NutritionEntry{
		UserID:   user.UserID,
		FoodName: "Granola",
		NutrientRecord: models.NutrientRecord{
			Calories: 230, Fat: 8, Protein: 3, Carbs: 37, Sugar: 12, Fiber: 4, Sodium: 160,
			Detected: []models.NutrientKey{models.Calories, models.Fat, models.Sodium},
		},
		CaloriesToBurn: 144.7,
		StepsNeeded:    3618,
	}
	id, err := db.InsertEntry(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, id)
	assert.False(t, entry.CreatedAt.IsZero())

	got, err := db.GetEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entry.NutrientRecord, got.NutrientRecord)
	assert.Equal(t, "Granola", got.FoodName)
	assert.Equal(t, 3618, got.StepsNeeded)
	assert.WithinDuration(t, entry.CreatedAt, got.CreatedAt, time.Microsecond)
}

func TestInsertEntryIsInsertOnly(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db)

	entry := &models.NutritionEntry{UserID: user.UserID, FoodName: "A"}
	_, err := db.InsertEntry(ctx, entry)
	require.NoError(t, err)

	dup := *entry
	_, err = db.InsertEntry(ctx, &dup)
	assert.Error(t, err)
}

func TestInsertEntryRequiresKnownUser(t *testing.T) {
	db := openTestDB(t)
	_, err := db.InsertEntry(context.Background(), &models.NutritionEntry{UserID: "ghost", FoodName: "A"})
	assert.Error(t, err)
}

func TestGetEntryNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetEntry(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetRecentEntries(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db)
	other := seedUser(t, db)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		_, err := db.InsertEntry(ctx, &models.NutritionEntry{
			UserID: user.UserID, FoodName: name, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	_, err := db.InsertEntry(ctx, &models.NutritionEntry{UserID: other.UserID, FoodName: "not mine", CreatedAt: base})
	require.NoError(t, err)

	entries, err := db.GetRecentEntries(ctx, user.UserID, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "third", entries[0].FoodName)
	assert.Equal(t, "second", entries[1].FoodName)

	all, err := db.GetRecentEntries(ctx, user.UserID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestScanLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	scan := &models.ScanRecord{UserID: "u1", Status: models.ScanPending}
	require.NoError(t, db.SaveScan(ctx, scan))
	require.NotEmpty(t, scan.ID)

	require.NoError(t, db.UpdateScanStatus(ctx, scan.ID, models.ScanFailed, "recognition_failed", "ocr stub: empty", ""))

	got, err := db.GetScan(ctx, scan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScanFailed, got.Status)
	assert.Equal(t, "recognition_failed", got.ErrorKind)
	assert.Equal(t, "ocr stub: empty", got.Error)

	err = db.UpdateScanStatus(ctx, "missing", models.ScanCompleted, "", "", "")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = db.GetScan(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestConcurrentInserts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := db.InsertEntry(ctx, &models.NutritionEntry{UserID: user.UserID, FoodName: "x"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	entries, err := db.GetRecentEntries(ctx, user.UserID, 100)
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}
