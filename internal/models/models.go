// package models defines the data model for the receipt generator
package models

import (
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Record carries the identity and bookkeeping fields shared by persistent entities.
type Record struct {
	RecordID  string     `json:"id"`
	Sequence  int        `json:"sequence"`
	Created   time.Time  `json:"created_at"`
	Updated   time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func (r *Record) ID() string           { return r.RecordID }
func (r *Record) CreatedAt() time.Time { return r.Created }
func (r *Record) UpdatedAt() time.Time { return r.Updated }

// SetID assigns the identifier, normally once on creation.
func (r *Record) SetID(id string) { r.RecordID = id }

// Touch marks the record as modified at t.
func (r *Record) Touch(t time.Time) { r.Updated = t }
