package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/logicinvent/project-portfolio-api/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.MemberRepository     = (*Repository)(nil)
	_ repository.ProjectRepository    = (*Repository)(nil)
	_ repository.AllocationRepository = (*Repository)(nil)
	_ repository.ReportRepository     = (*Repository)(nil)
)

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// translateError maps driver errors onto repository sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return repository.ErrConflict
		case "23503":
			return repository.ErrReferenced
		case "23514", "22P02", "22007", "22008":
			return repository.ErrInvalidArgument
		}
	}
	return err
}

// containsPattern builds an ILIKE pattern matching name as a substring.
// An empty name matches everything.
func containsPattern(name string) string {
	name = strings.TrimSpace(name)
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(name) + "%"
}
