package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/medportal-api/internal/core/domain"
	"github.com/arklim/medportal-api/internal/core/port"
	"github.com/arklim/medportal-api/internal/repository"
)

const accountsTable = "accounts"

var accountColumns = []string{
	"id",
	"email",
	"username",
	"hashed_password",
	"name",
	"surname",
	"patronymic",
	"phone_number",
	"is_active",
	"is_verified",
	"is_superuser",
	"verification_token",
	"role_id",
	"registered_at",
}

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	return &AccountRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	if tx == nil {
		return r
	}
	return &AccountRepository{
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new account row and returns its generated identifier.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) (int64, error) {
	stmt, args, err := r.builder.Insert(accountsTable).
		Columns(
			"email",
			"username",
			"hashed_password",
			"name",
			"surname",
			"patronymic",
			"phone_number",
			"is_active",
			"is_verified",
			"is_superuser",
			"verification_token",
			"role_id",
			"registered_at",
		).
		Values(
			account.Email,
			account.Username,
			account.PasswordHash,
			account.Name,
			account.Surname,
			account.Patronymic,
			nullableString(account.Phone),
			account.IsActive,
			account.IsVerified,
			account.IsSuperuser,
			account.VerificationToken,
			account.RoleID,
			account.RegisteredAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert account sql: %w", err)
	}

	var id int64
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&id); err != nil {
		return 0, wrapWriteError("insert account", err)
	}

	return id, nil
}

// GetByID retrieves an account by identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id}, "by id")
}

// GetByEmail retrieves an account by its email address.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email}, "by email")
}

// GetByIdentifier retrieves an account by username or email.
func (r *AccountRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	return r.getOne(ctx, squirrel.Or{
		squirrel.Eq{"email": identifier},
		squirrel.Eq{"username": identifier},
	}, "by identifier")
}

// GetByVerificationToken retrieves the account currently holding the token digest.
func (r *AccountRepository) GetByVerificationToken(ctx context.Context, tokenHash string) (*domain.Account, error) {
	return r.getOne(ctx, squirrel.Eq{"verification_token": tokenHash}, "by verification token")
}

func (r *AccountRepository) getOne(ctx context.Context, where squirrel.Sqlizer, label string) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account %s sql: %w", label, err)
	}

	account, err := scanAccount(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account %s: %w", label, err)
	}

	return account, nil
}

// ExistsByEmailOrUsername reports whether another account already uses the email or username.
func (r *AccountRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string, excludeID int64) (bool, error) {
	match := squirrel.Or{}
	if email != "" {
		match = append(match, squirrel.Eq{"email": email})
	}
	if username != "" {
		match = append(match, squirrel.Eq{"username": username})
	}
	if len(match) == 0 {
		return false, nil
	}

	query := r.builder.Select("1").From(accountsTable).Where(match)
	if excludeID > 0 {
		query = query.Where(squirrel.NotEq{"id": excludeID})
	}

	stmt, args, err := query.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, fmt.Errorf("build account exists sql: %w", err)
	}

	var exists bool
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("query account exists: %w", err)
	}

	return exists, nil
}

// MarkVerified sets the verified flag and clears the token, but only while tokenHash is still stored.
func (r *AccountRepository) MarkVerified(ctx context.Context, id int64, tokenHash string) (bool, error) {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("is_verified", true).
		Set("verification_token", nil).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"verification_token": tokenHash}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build mark verified sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("mark account verified: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// UpdatePassword replaces the stored password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("hashed_password", passwordHash).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update account password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateProfile replaces the editable profile fields and returns the stored row.
func (r *AccountRepository) UpdateProfile(ctx context.Context, id int64, fields domain.ProfileFields) (*domain.Account, error) {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("username", fields.Username).
		Set("name", fields.Name).
		Set("surname", fields.Surname).
		Set("patronymic", fields.Patronymic).
		Set("phone_number", nullableString(fields.Phone)).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(accountColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update profile sql: %w", err)
	}

	account, err := scanAccount(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, wrapWriteError("update account profile", err)
	}

	return account, nil
}

// Delete removes the account permanently.
func (r *AccountRepository) Delete(ctx context.Context, id int64) error {
	stmt, args, err := r.builder.Delete(accountsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete account sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account    domain.Account
		phone      *string
		patronymic *string
	)

	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.Username,
		&account.PasswordHash,
		&account.Name,
		&account.Surname,
		&patronymic,
		&phone,
		&account.IsActive,
		&account.IsVerified,
		&account.IsSuperuser,
		&account.VerificationToken,
		&account.RoleID,
		&account.RegisteredAt,
	); err != nil {
		return nil, err
	}

	account.Patronymic = derefString(patronymic)
	account.Phone = derefString(phone)

	return &account, nil
}

// Transactor implements port.AccountTransactor on top of a pool able to begin transactions.
type Transactor struct {
	db   txBeginner
	repo *AccountRepository
}

// NewTransactor wires a transactor around the given pool.
func NewTransactor(db txBeginner) *Transactor {
	return &Transactor{db: db, repo: NewAccountRepository(db)}
}

// WithinTx runs fn inside a transaction, committing on success and rolling back otherwise.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repo port.AccountRepository) error) error {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(ctx, t.repo.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback transaction: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

var (
	_ port.AccountRepository = (*AccountRepository)(nil)
	_ port.AccountTransactor = (*Transactor)(nil)
)
