package studio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/bravozulu-films/bzf/internal/blob"
	"github.com/bravozulu-films/bzf/internal/database"
)

// Asset kinds.
const (
	KindPoster = "poster"
	KindUpload = "upload"
)

// MaxAssetTitle is the longest asset title stored.
const MaxAssetTitle = 200

// Asset is a design asset in a member's library.
type Asset struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"ownerId"`
	Title        string    `json:"title"`
	Kind         string    `json:"kind"`
	BlobCID      string    `json:"cid"`
	MimeType     string    `json:"mimeType"`
	Prompt       string    `json:"prompt,omitempty"`
	GenerationID *string   `json:"generationId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

const assetColumns = `id, owner_id, title, kind, blob_cid, mime_type, prompt, generation_id::text, created_at`

func scanAsset(row pgx.Row) (*Asset, error) {
	var a Asset
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Title, &a.Kind, &a.BlobCID, &a.MimeType,
		&a.Prompt, &a.GenerationID, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// NormalizeTitle trims an asset title and checks its length.
func NormalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if utf8.RuneCountInString(title) > MaxAssetTitle {
		return "", fmt.Errorf("%w: title must be at most %d characters", ErrInvalid, MaxAssetTitle)
	}
	return title, nil
}

// UploadAsset stores a member-provided image as a design asset.
func (s *Service) UploadAsset(ctx context.Context, ownerID int64, title, mimeType string, r io.Reader) (*Asset, error) {
	title, err := NormalizeTitle(title)
	if err != nil {
		return nil, err
	}
	if mt, err := blob.NormalizeMimeType(mimeType); err != nil || !strings.HasPrefix(mt, "image/") {
		return nil, fmt.Errorf("%w: design assets must be images", ErrInvalid)
	}
	ref, err := s.blobs.Upload(ctx, ownerID, mimeType, r)
	if err != nil {
		return nil, err
	}
	return s.insertAsset(ctx, ownerID, title, KindUpload, ref, "", nil)
}

func (s *Service) insertAsset(ctx context.Context, ownerID int64, title, kind string, ref *blob.BlobRef, prompt string, generationID *string) (*Asset, error) {
	a, err := scanAsset(s.db.Pool.QueryRow(ctx,
		`INSERT INTO design_assets (owner_id, title, kind, blob_cid, mime_type, prompt, generation_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::uuid)
		 RETURNING `+assetColumns,
		ownerID, title, kind, ref.CID, ref.MimeType, prompt, generationID))
	if err != nil {
		return nil, fmt.Errorf("studio: insert asset: %w", err)
	}
	return a, nil
}

// Assets lists ownerID's design assets, newest first.
func (s *Service) Assets(ctx context.Context, ownerID int64, page database.Page) ([]Asset, error) {
	page = page.Normalize()
	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+assetColumns+` FROM design_assets WHERE owner_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		ownerID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("studio: list assets %d: %w", ownerID, err)
	}
	defer rows.Close()

	out := []Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("studio: list assets scan: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Asset returns one of ownerID's assets.
func (s *Service) Asset(ctx context.Context, ownerID, id int64) (*Asset, error) {
	a, err := scanAsset(s.db.Pool.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM design_assets WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: asset %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("studio: get asset %d: %w", id, err)
	}
	return a, nil
}

// DeleteAsset removes one of ownerID's assets. The underlying blob is
// kept; other rows may reference the same content.
func (s *Service) DeleteAsset(ctx context.Context, ownerID, id int64) error {
	result, err := s.db.Pool.Exec(ctx,
		`DELETE FROM design_assets WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("studio: delete asset %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: asset %d", ErrNotFound, id)
	}
	return nil
}
