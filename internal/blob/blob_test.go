package blob

import (
	"bytes"
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCID(t *testing.T) {
	a, err := ComputeCID([]byte("FADE IN:"))
	require.NoError(t, err)
	b, err := ComputeCID([]byte("FADE IN:"))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := cid.Decode(a)
	require.NoError(t, err)
	assert.EqualValues(t, 1, c.Version())
	assert.EqualValues(t, cid.Raw, c.Type())
	assert.EqualValues(t, multihash.SHA2_256, c.Prefix().MhType)

	other, err := ComputeCID([]byte("FADE OUT."))
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestParseCID(t *testing.T) {
	s, err := ComputeCID([]byte("x"))
	require.NoError(t, err)

	got, err := ParseCID(s)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = ParseCID("not-a-cid")
	assert.ErrorIs(t, err, ErrInvalidCID)
}

func TestNormalizeMimeType(t *testing.T) {
	for in, want := range map[string]string{
		"image/png":                 "image/png",
		"IMAGE/JPEG":                "image/jpeg",
		"image/webp; charset=utf-8": "image/webp",
		"application/pdf":           "application/pdf",
	} {
		got, err := NormalizeMimeType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, bad := range []string{"", "text/html", "application/zip", "image"} {
		_, err := NormalizeMimeType(bad)
		assert.ErrorIs(t, err, ErrUnsupportedType, bad)
	}
}

func TestPutRejectsBeforeStoring(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	_, err := s.Put(ctx, 1, "text/plain", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = s.Put(ctx, 1, "image/png", nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = s.Upload(ctx, 1, "image/png", bytes.NewReader(make([]byte, MaxBlobSize+1)))
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = s.Get(ctx, "bogus")
	assert.ErrorIs(t, err, ErrInvalidCID)
}
