// Package storage persists the document catalog and the question history.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines catalog and history persistence operations.
type Storage interface {
	// Document catalog
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	FindDocumentByName(ctx context.Context, name string) (*models.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// Conversation history
	CreateExchange(ctx context.Context, ex *models.Exchange) error
	ListExchanges(ctx context.Context, limit int) ([]*models.Exchange, error)

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	SumChunks(ctx context.Context) (int64, error)

	// Reset removes every document and exchange.
	Reset(ctx context.Context) error

	Close() error
}
