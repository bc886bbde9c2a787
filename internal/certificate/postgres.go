package certificate

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists certificates in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed certificate store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const certColumns = `id, user_id, kind, fingerprint, content, ledger_entry_ids, batch_ids, status, issued_at`

// Save inserts a certificate record.
func (s *PostgresStore) Save(ctx context.Context, cert Certificate) error {
	_, err := s.db.Exec(ctx, `INSERT INTO certificates (`+certColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		cert.ID, cert.UserID, cert.Kind, cert.Fingerprint, []byte(cert.Content),
		cert.LedgerEntryIDs, cert.BatchIDs, cert.Status, cert.IssuedAt.UTC())
	return err
}

// SaveTx inserts a certificate inside an existing transaction.
func SaveTx(ctx context.Context, tx pgx.Tx, cert Certificate) error {
	_, err := tx.Exec(ctx, `INSERT INTO certificates (`+certColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		cert.ID, cert.UserID, cert.Kind, cert.Fingerprint, []byte(cert.Content),
		cert.LedgerEntryIDs, cert.BatchIDs, cert.Status, cert.IssuedAt.UTC())
	return err
}

// Get fetches a certificate by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Certificate, error) {
	row := s.db.QueryRow(ctx, `SELECT `+certColumns+` FROM certificates WHERE id = $1`, id)
	cert, err := scanCertificate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Certificate{}, ErrNotFound
	}
	return cert, err
}

// ListByUser returns a user's certificates, oldest first.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Certificate, error) {
	rows, err := s.db.Query(ctx, `SELECT `+certColumns+` FROM certificates
        WHERE user_id = $1 ORDER BY issued_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cert)
	}
	return out, rows.Err()
}

func scanCertificate(row pgx.Row) (Certificate, error) {
	var cert Certificate
	var content []byte
	if err := row.Scan(&cert.ID, &cert.UserID, &cert.Kind, &cert.Fingerprint, &content,
		&cert.LedgerEntryIDs, &cert.BatchIDs, &cert.Status, &cert.IssuedAt); err != nil {
		return Certificate{}, err
	}
	cert.Content = content
	cert.IssuedAt = cert.IssuedAt.UTC()
	return cert, nil
}
