package apitoken_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-qa/testpilot/apitoken"
	"github.com/kestrel-qa/testpilot/logger"
	"github.com/kestrel-qa/testpilot/testutil"
)

func setupTestStore(t *testing.T) *apitoken.MySQLStore {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db, &apitoken.APIToken{})
	return apitoken.NewMySQLStore(db, logger.NewTestLogger())
}

// newToken builds a valid active token with a fresh random hash.
func newToken(t *testing.T, name string) (*apitoken.APIToken, string) {
	t.Helper()
	raw, hash, err := apitoken.GenerateToken()
	require.NoError(t, err)

	return &apitoken.APIToken{
		Name:      name,
		TokenHash: hash,
		Scope:     apitoken.ScopeReadOnly,
		ExpiresAt: time.Now().Add(apitoken.DefaultExpiry),
		IsActive:  true,
	}, raw
}
