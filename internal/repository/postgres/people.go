package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/domain"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/port"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/repository"
)

const (
	personTable      = "people_person"
	personEmailTable = "people_personemail"
	roleTable        = "authentication_role"
)

var personColumns = []string{
	"p.id",
	"e.address",
	"r.password",
	"p.auto_login_salt",
	"r.is_active",
	"p.created",
	"r.last_login",
}

// PersonRepository implements port.PersonRepository on the platform tables. A person owns several
// email addresses ordered by preference and one authentication role holding password and status.
type PersonRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPersonRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewPersonRepository(exec pgExecutor) *PersonRepository {
	return &PersonRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *PersonRepository) WithTx(tx pgx.Tx) *PersonRepository {
	if tx == nil {
		return r
	}
	return &PersonRepository{exec: tx, builder: r.builder}
}

// GetByID retrieves a person with their primary email address.
func (r *PersonRepository) GetByID(ctx context.Context, id string) (*domain.Person, error) {
	return r.getOne(ctx, squirrel.Eq{"p.id": id})
}

// GetByEmail retrieves the person owning email, compared case-insensitively.
// The returned Email is the matched address.
func (r *PersonRepository) GetByEmail(ctx context.Context, email string) (*domain.Person, error) {
	return r.getOne(ctx, squirrel.Expr("lower(e.address) = ?", strings.ToLower(strings.TrimSpace(email))))
}

func (r *PersonRepository) getOne(ctx context.Context, where squirrel.Sqlizer) (*domain.Person, error) {
	stmt, args, err := r.builder.
		Select(personColumns...).
		From(personTable + " p").
		Join(personEmailTable + " e ON e.person_id = p.id").
		Join(roleTable + " r ON r.id = p.role_id").
		Where(where).
		OrderBy("e._order").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select person sql: %w", err)
	}

	var (
		person   domain.Person
		password *string
	)
	err = r.exec.QueryRow(ctx, stmt, args...).Scan(
		&person.ID,
		&person.Email,
		&password,
		&person.AutoLoginSalt,
		&person.IsActive,
		&person.CreatedAt,
		&person.LastLogin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select person: %w", err)
	}

	if password != nil && *password != "" {
		person.PasswordHash = password
	}

	return &person, nil
}

// UpdateAutoLoginSalt stores a new auto login salt for the person.
func (r *PersonRepository) UpdateAutoLoginSalt(ctx context.Context, id string, salt string) error {
	stmt, args, err := r.builder.
		Update(personTable).
		Set("auto_login_salt", salt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update auto login salt sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update auto login salt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// TouchLastLogin records a successful login on the person's role.
func (r *PersonRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.
		Update(roleTable).
		Set("last_login", at.UTC()).
		Where(squirrel.Expr("id = (SELECT role_id FROM "+personTable+" WHERE id = ?)", id)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update last login sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.PersonRepository = (*PersonRepository)(nil)
