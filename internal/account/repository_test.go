package account

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureauth/secureauth/internal/apperr"
)

// Postgres tests are opt-in and require TEST_DATABASE_URL. Each run works in
// a throwaway schema that is dropped on cleanup.

func TestMemoryRepository(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) Repository { return NewMemoryRepository() })
}

func TestPostgresRepository(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	runRepositoryContract(t, func(t *testing.T) Repository {
		return NewPostgresRepository(openTestPool(t, url))
	})
}

func openTestPool(t *testing.T, url string) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	admin, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	schema := fmt.Sprintf("secureauth_test_%d", time.Now().UnixNano())
	_, err = admin.Exec(ctx, `CREATE SCHEMA `+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), `DROP SCHEMA `+schema+` CASCADE`)
		admin.Close()
	})

	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	ddl, err := os.ReadFile("../../db/schema.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(ddl))
	require.NoError(t, err)
	return pool
}

func sampleAccount(accountNumber string) Account {
	return Account{
		AccountNumber: accountNumber,
		PasswordHash:  "$2a$04$abcdefghijklmnopqrstuuWq0.Uj2v1nBf8pZ0m8xYkq6Q9j3vYxKa",
		Profile: Profile{
			FirstName:            "Jane",
			LastName:             "Doe",
			Age:                  34,
			Gender:               "F",
			PhoneNumber:          "(555) 123-4567",
			Address:              "1 Main St",
			BankAccountType:      "savings",
			DateOfAccountOpening: time.Date(2020, 5, 17, 0, 0, 0, 0, time.UTC),
			BranchCode:           "BR001",
		},
		CreatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func runRepositoryContract(t *testing.T, open func(t *testing.T) Repository) {
	t.Run("create and find", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, sampleAccount("111111111111")))

		got, err := repo.Find(ctx, "111111111111")
		require.NoError(t, err)
		assert.Equal(t, "Jane", got.FirstName)
		assert.Zero(t, got.LoginAttempts)
		assert.Nil(t, got.LastFailedAttempt)

		_, err = repo.Find(ctx, "222222222222")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("duplicate create", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, sampleAccount("111111111111")))

		other := sampleAccount("111111111111")
		other.FirstName = "Mallory"
		assert.ErrorIs(t, repo.Create(ctx, other), apperr.ErrDuplicateAccount)

		got, err := repo.Find(ctx, "111111111111")
		require.NoError(t, err)
		assert.Equal(t, "Jane", got.FirstName)
	})

	t.Run("record attempts", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, sampleAccount("111111111111")))

		at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		a, err := repo.RecordAttempt(ctx, "111111111111", at, Outcome(false))
		require.NoError(t, err)
		assert.Equal(t, 1, a.LoginAttempts)
		require.NotNil(t, a.LastFailedAttempt)
		assert.True(t, a.LastFailedAttempt.Equal(at))

		a, err = repo.RecordAttempt(ctx, "111111111111", at.Add(time.Second), Outcome(true))
		require.NoError(t, err)
		assert.Zero(t, a.LoginAttempts)
		assert.Nil(t, a.LastFailedAttempt)
		require.NotNil(t, a.LastLogin)

		_, err = repo.RecordAttempt(ctx, "999999999999", at, Outcome(false))
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("aborted attempt leaves counters", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, sampleAccount("111111111111")))

		at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		_, err := repo.RecordAttempt(ctx, "111111111111", at, Outcome(false))
		require.NoError(t, err)

		refused := apperr.New("test", apperr.ErrLocked, "locked")
		var seen int
		_, err = repo.RecordAttempt(ctx, "111111111111", at.Add(time.Second), func(a Account) (bool, error) {
			seen = a.LoginAttempts
			return false, refused
		})
		assert.ErrorIs(t, err, apperr.ErrLocked)
		assert.Equal(t, 1, seen)

		got, err := repo.Find(ctx, "111111111111")
		require.NoError(t, err)
		assert.Equal(t, 1, got.LoginAttempts)
		require.NotNil(t, got.LastFailedAttempt)
		assert.True(t, got.LastFailedAttempt.Equal(at))
	})

	t.Run("concurrent attempts", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, sampleAccount("111111111111")))

		const n = 25
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.RecordAttempt(ctx, "111111111111", time.Now(), Outcome(false))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := repo.Find(ctx, "111111111111")
		require.NoError(t, err)
		assert.Equal(t, n, got.LoginAttempts)
	})

	t.Run("update keeps key", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, sampleAccount("111111111111")))

		got, err := repo.Update(ctx, "111111111111", func(a *Account) error {
			a.AccountNumber = "222222222222"
			a.Address = "2 High St"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "111111111111", got.AccountNumber)
		assert.Equal(t, "2 High St", got.Address)
	})

	t.Run("list and delete", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, sampleAccount("222222222222")))
		require.NoError(t, repo.Create(ctx, sampleAccount("111111111111")))

		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "111111111111", all[0].AccountNumber)

		require.NoError(t, repo.Delete(ctx, "111111111111"))
		assert.ErrorIs(t, repo.Delete(ctx, "111111111111"), apperr.ErrNotFound)
		assert.NoError(t, repo.Ping(ctx))
	})
}
