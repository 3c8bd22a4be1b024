package kvstore_test

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adwise/src/storage/kvstore"
)

func newStores(t *testing.T) map[string]kvstore.Store {
	t.Helper()

	fileStore, err := kvstore.NewFileStore(t.TempDir(), "default")
	require.NoError(t, err)

	db, err := kvstore.OpenGorm(kvstore.DriverSQLite, filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	gormStore, err := kvstore.NewGormStore(db, "default")
	require.NoError(t, err)
	t.Cleanup(func() { gormStore.Close() })

	return map[string]kvstore.Store{
		"memory": kvstore.NewMemoryStore(),
		"file":   fileStore,
		"sqlite": gormStore,
	}
}

func TestStoreContract(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.Get(kvstore.ActiveJobIDKey)
			require.NoError(t, err)
			assert.True(t, got.IsAbsent(), "missing key must be absent, not an error")

			require.NoError(t, store.Set(kvstore.ActiveJobIDKey, "job-1"))
			got, err = store.Get(kvstore.ActiveJobIDKey)
			require.NoError(t, err)
			assert.Equal(t, "job-1", got.MustGet())

			require.NoError(t, store.Set(kvstore.ActiveJobIDKey, "job-2"))
			got, err = store.Get(kvstore.ActiveJobIDKey)
			require.NoError(t, err)
			assert.Equal(t, "job-2", got.MustGet(), "last write wins")

			require.NoError(t, store.Remove(kvstore.ActiveJobIDKey))
			got, err = store.Get(kvstore.ActiveJobIDKey)
			require.NoError(t, err)
			assert.True(t, got.IsAbsent())

			require.NoError(t, store.Remove("never-set"))
		})
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	first, err := kvstore.NewFileStore(dir, "alice")
	require.NoError(t, err)
	require.NoError(t, first.Set(kvstore.ActiveJobIDKey, "job-42"))

	second, err := kvstore.NewFileStore(dir, "alice")
	require.NoError(t, err)
	got, err := second.Get(kvstore.ActiveJobIDKey)
	require.NoError(t, err)
	assert.Equal(t, "job-42", got.OrEmpty())

	other, err := kvstore.NewFileStore(dir, "bob")
	require.NoError(t, err)
	got, err = other.Get(kvstore.ActiveJobIDKey)
	require.NoError(t, err)
	assert.True(t, got.IsAbsent(), "profiles must not share values")
}

func TestFileStoreCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	store, err := kvstore.NewFileStore(dir, "default")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o644))

	_, err = store.Get(kvstore.ActiveJobIDKey)
	assert.Error(t, err)
}

func TestGormStoreProfilesAreIsolated(t *testing.T) {
	db, err := kvstore.OpenGorm(kvstore.DriverSQLite, filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)

	alice, err := kvstore.NewGormStore(db, "alice")
	require.NoError(t, err)
	bob, err := kvstore.NewGormStore(db, "bob")
	require.NoError(t, err)

	require.NoError(t, alice.Set(kvstore.ActiveJobIDKey, "a"))
	require.NoError(t, bob.Set(kvstore.ActiveJobIDKey, "b"))

	got, err := alice.Get(kvstore.ActiveJobIDKey)
	require.NoError(t, err)
	assert.Equal(t, "a", got.OrEmpty())

	require.NoError(t, bob.Remove(kvstore.ActiveJobIDKey))
	got, err = alice.Get(kvstore.ActiveJobIDKey)
	require.NoError(t, err)
	assert.Equal(t, "a", got.OrEmpty())
}

func TestFileStoreConcurrentSetsKeepEveryKey(t *testing.T) {
	for round := 0; round < 10; round++ {
		store, err := kvstore.NewFileStore(t.TempDir(), "default")
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, store.Set(fmt.Sprintf("k%d", i), "v"))
			}()
		}
		wg.Wait()

		for i := 0; i < 16; i++ {
			got, err := store.Get(fmt.Sprintf("k%d", i))
			require.NoError(t, err)
			assert.Equal(t, "v", got.OrEmpty(), "round %d key k%d", round, i)
		}
	}
}

func TestOpenReadOnlySQLiteFailsMigration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := kvstore.Open(kvstore.Config{Driver: kvstore.DriverSQLite, DSN: "file:" + path + "?mode=ro"})
	assert.ErrorContains(t, err, "failed to migrate kv_entries")

	db, err := kvstore.OpenGorm(kvstore.DriverSQLite, path)
	require.NoError(t, err)
	store, err := kvstore.NewGormStore(db, "default")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Set(kvstore.ActiveJobIDKey, "J1"))
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     kvstore.Config
		wantErr error
	}{
		{name: "memory", cfg: kvstore.Config{Driver: kvstore.DriverMemory}},
		{name: "file default driver", cfg: kvstore.Config{Dir: t.TempDir()}},
		{name: "sqlite", cfg: kvstore.Config{Driver: kvstore.DriverSQLite, DSN: filepath.Join(t.TempDir(), "kv.db")}},
		{name: "unknown driver", cfg: kvstore.Config{Driver: "redis"}, wantErr: kvstore.ErrUnknownDriver},
		{name: "bad profile", cfg: kvstore.Config{Driver: kvstore.DriverMemory, Profile: "../etc"}, wantErr: kvstore.ErrInvalidProfile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := kvstore.Open(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, store)
		})
	}
}
