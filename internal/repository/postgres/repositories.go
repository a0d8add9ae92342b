package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Accounts   *AccountRepository
	Transactor *Transactor
	Roles      *RoleRepository
	Profiles   *ProfileRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Accounts:   NewAccountRepository(pool),
		Transactor: NewTransactor(pool),
		Roles:      NewRoleRepository(pool),
		Profiles:   NewProfileRepository(pool),
	}
}
