package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
)

// PersonRepository looks up stored people.
type PersonRepository struct {
	db *sqlx.DB
}

// NewPersonRepository constructs the repository.
func NewPersonRepository(db *sqlx.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

// FindByDocument returns the person holding a cleaned document number.
func (r *PersonRepository) FindByDocument(ctx context.Context, document string) (*models.Person, error) {
	const query = `SELECT id, name, email, phone, birth_date, document_type, document_number, profession
FROM people WHERE document_number = $1`
	var person models.Person
	if err := r.db.GetContext(ctx, &person, query, document); err != nil {
		return nil, err
	}
	return &person, nil
}
