package user

import (
	"testing"

	"github.com/tendant/simple-trust/internal/testdb"
)

func TestPostgresUserRepository(t *testing.T) {
	pool := testdb.NewPool(t)
	repo := NewPostgresUserRepository(pool)

	testUserRepository(t, repo)
	testConcurrentClaim(t, repo)
}
