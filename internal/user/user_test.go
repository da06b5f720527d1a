package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateParamsNormalize(t *testing.T) {
	p := CreateParams{
		Email:    "  Sgt.Rock@Example.COM ",
		Username: " Rock_01 ",
		Password: "correct horse",
	}
	require.NoError(t, p.Normalize())
	assert.Equal(t, "sgt.rock@example.com", p.Email)
	assert.Equal(t, "rock_01", p.Username)
	assert.Equal(t, "rock_01", p.DisplayName)
}

func TestCreateParamsRejects(t *testing.T) {
	base := func() CreateParams {
		return CreateParams{Email: "a@b.co", Username: "alpha", Password: "longenough"}
	}
	tests := []struct {
		name   string
		mutate func(*CreateParams)
		want   string
	}{
		{"empty email", func(p *CreateParams) { p.Email = "  " }, "email is required"},
		{"bad email", func(p *CreateParams) { p.Email = "not-an-email" }, "valid address"},
		{"named email", func(p *CreateParams) { p.Email = "Bob <bob@x.io>" }, "valid address"},
		{"short username", func(p *CreateParams) { p.Username = "ab" }, "username"},
		{"bad username chars", func(p *CreateParams) { p.Username = "bad-name" }, "username"},
		{"short password", func(p *CreateParams) { p.Password = "1234567" }, "at least 8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base()
			tt.mutate(&p)
			err := p.Normalize()
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestProfileUpdateNormalize(t *testing.T) {
	name := "  Doc  "
	branch := "marine_corps"
	upd := ProfileUpdate{
		DisplayName:    &name,
		MilitaryBranch: &branch,
		Specialties:    []string{" editing ", "", "gaffer"},
	}
	require.NoError(t, upd.Normalize())
	assert.Equal(t, "Doc", *upd.DisplayName)
	assert.Equal(t, []string{"editing", "gaffer"}, upd.Specialties)

	bad := "cavalry"
	err := (&ProfileUpdate{MilitaryBranch: &bad}).Normalize()
	assert.ErrorIs(t, err, ErrInvalid)

	blank := " "
	err = (&ProfileUpdate{DisplayName: &blank}).Normalize()
	assert.ErrorIs(t, err, ErrInvalid)

	clear := ""
	assert.NoError(t, (&ProfileUpdate{MilitaryBranch: &clear}).Normalize())
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("semper-fi-1775")
	require.NoError(t, err)
	assert.NoError(t, CheckPassword(hash, "semper-fi-1775"))
	assert.Error(t, CheckPassword(hash, "semper-fi-1776"))
}

func TestUserHelpers(t *testing.T) {
	u := &User{Email: "x@y.z", Role: RoleModerator, VerificationStatus: VerificationApproved}
	assert.True(t, u.IsVerified())
	assert.True(t, u.IsModerator())
	assert.False(t, u.IsAdmin())
	assert.Empty(t, u.Public().Email)
	assert.Equal(t, "x@y.z", u.Email)

	assert.True(t, ValidRole(RoleAdmin))
	assert.False(t, ValidRole("owner"))
	assert.True(t, ValidStatus(StatusBanned))
	assert.False(t, ValidStatus("removed"))
	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
}
