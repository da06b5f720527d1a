// Package blob provides content-addressed storage for member uploads
// (avatars, service documents, design assets). Blobs are keyed by
// (owner, cid) with a 5 MiB size limit.
package blob

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/jackc/pgx/v5"
	"github.com/multiformats/go-multihash"

	"github.com/bravozulu-films/bzf/internal/database"
)

// MaxBlobSize is the maximum allowed blob size (5 MiB).
const MaxBlobSize = 5 << 20

// Sentinel errors for blob operations.
var (
	ErrNotFound        = errors.New("blob: not found")
	ErrTooLarge        = errors.New("blob: too large")
	ErrUnsupportedType = errors.New("blob: unsupported content type")
	ErrInvalidCID      = errors.New("blob: invalid cid")
	ErrEmpty           = errors.New("blob: empty upload")
)

// BlobRef is returned after a successful upload.
type BlobRef struct {
	CID      string `json:"cid"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// Blob is a stored upload.
type Blob struct {
	BlobRef
	OwnerID int64
	Data    []byte
}

// NormalizeMimeType strips parameters and checks that the type is an
// image or a PDF.
func NormalizeMimeType(mimeType string) (string, error) {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, mimeType)
	}
	if strings.HasPrefix(mt, "image/") || mt == "application/pdf" {
		return mt, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedType, mt)
}

// ComputeCID returns the CIDv1 (raw codec, sha2-256) of data.
func ComputeCID(data []byte) (string, error) {
	hash := sha256.Sum256(data)
	mh, err := multihash.Encode(hash[:], multihash.SHA2_256)
	if err != nil {
		return "", fmt.Errorf("blob: multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}

// ParseCID validates a CID string and returns its canonical form.
func ParseCID(s string) (string, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCID, s)
	}
	return c.String(), nil
}

// Store handles blob uploads and retrieval.
type Store struct {
	db *database.DB
}

// NewStore creates a blob Store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Upload reads data from r, computes a CID, and stores the blob for
// ownerID. Uploading the same bytes twice returns the same reference.
func (s *Store) Upload(ctx context.Context, ownerID int64, mimeType string, r io.Reader) (*BlobRef, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxBlobSize+1))
	if err != nil {
		return nil, fmt.Errorf("blob: read: %w", err)
	}
	return s.Put(ctx, ownerID, mimeType, data)
}

// Put stores data for ownerID.
func (s *Store) Put(ctx context.Context, ownerID int64, mimeType string, data []byte) (*BlobRef, error) {
	mt, err := NormalizeMimeType(mimeType)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if len(data) > MaxBlobSize {
		return nil, fmt.Errorf("%w: exceeds maximum size of %d bytes", ErrTooLarge, MaxBlobSize)
	}

	cidStr, err := ComputeCID(data)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Pool.Exec(ctx,
		`INSERT INTO blobs (owner_id, cid, mime_type, size, data)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (owner_id, cid) DO NOTHING`,
		ownerID, cidStr, mt, len(data), data,
	)
	if err != nil {
		return nil, fmt.Errorf("blob: store: %w", err)
	}

	return &BlobRef{
		CID:      cidStr,
		MimeType: mt,
		Size:     int64(len(data)),
	}, nil
}

// Get retrieves a blob by CID.
func (s *Store) Get(ctx context.Context, cidStr string) (*Blob, error) {
	cidStr, err := ParseCID(cidStr)
	if err != nil {
		return nil, err
	}

	var b Blob
	err = s.db.Pool.QueryRow(ctx,
		`SELECT owner_id, cid, mime_type, size, data FROM blobs WHERE cid = $1
		 ORDER BY created_at LIMIT 1`,
		cidStr,
	).Scan(&b.OwnerID, &b.CID, &b.MimeType, &b.Size, &b.Data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, cidStr)
	}
	if err != nil {
		return nil, fmt.Errorf("blob: get %s: %w", cidStr, err)
	}
	return &b, nil
}

// Owned returns ownerID's reference to cidStr, or ErrNotFound if that
// member never uploaded it.
func (s *Store) Owned(ctx context.Context, ownerID int64, cidStr string) (*BlobRef, error) {
	cidStr, err := ParseCID(cidStr)
	if err != nil {
		return nil, err
	}

	ref := BlobRef{CID: cidStr}
	err = s.db.Pool.QueryRow(ctx,
		`SELECT mime_type, size FROM blobs WHERE owner_id = $1 AND cid = $2`,
		ownerID, cidStr,
	).Scan(&ref.MimeType, &ref.Size)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, cidStr)
	}
	if err != nil {
		return nil, fmt.Errorf("blob: lookup %s: %w", cidStr, err)
	}
	return &ref, nil
}
