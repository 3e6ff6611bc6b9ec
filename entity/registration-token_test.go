package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenExpiry(t *testing.T) {
	now := time.Now()

	tok := &RegistrationToken{}
	assert.False(t, tok.IsExpired(now), "token without expiry never expires")

	past := now.Add(-time.Hour)
	tok.ExpiresAt = &past
	assert.True(t, tok.IsExpired(now))

	future := now.Add(time.Hour)
	tok.ExpiresAt = &future
	assert.False(t, tok.IsExpired(now))
}

func TestTokenExhaustion(t *testing.T) {
	tok := &RegistrationToken{MaxUses: UnlimitedUses, CurrentUses: 1000000}
	assert.False(t, tok.IsExhausted(), "unlimited token never exhausts")
	assert.Equal(t, UnlimitedUses, tok.UsesLeft())

	tok = &RegistrationToken{MaxUses: 3, CurrentUses: 2}
	assert.False(t, tok.IsExhausted())
	assert.Equal(t, 1, tok.UsesLeft())

	tok.CurrentUses = 3
	assert.True(t, tok.IsExhausted())
	assert.Equal(t, 0, tok.UsesLeft())
}

func TestTokenEntryURL(t *testing.T) {
	tok := &RegistrationToken{Token: "Ab3dE9xZ"}
	url := tok.EntryURL("https://church.example.org")
	assert.Equal(t, "https://church.example.org/register/qr?token=Ab3dE9xZ", url)
}

func TestCreateTokenParamsDefaultsToSingleUse(t *testing.T) {
	params := &CreateTokenParams{Purpose: "sunday service"}
	assert.NoError(t, params.Bind(nil))
	assert.Equal(t, 1, params.MaxUses)

	params = &CreateTokenParams{Purpose: "open house", MaxUses: UnlimitedUses}
	assert.NoError(t, params.Bind(nil))
	assert.Equal(t, UnlimitedUses, params.MaxUses)
}
