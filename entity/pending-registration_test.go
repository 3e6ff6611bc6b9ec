package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("A@x.com"))
	assert.Equal(t, "a@x.com", NormalizeEmail("  a@X.COM "))
	assert.Equal(t, "", NormalizeEmail(""))
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "628123456", NormalizePhone("+62 812-3456"))
	assert.Equal(t, "08123456", NormalizePhone("0812 3456"))
	assert.Equal(t, "", NormalizePhone("ext."))
}

func TestApprovalStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.False(t, ApprovalStatus("bogus").Valid())
}

func TestRegistrationFormBind(t *testing.T) {
	form := &RegistrationForm{Token: "Ab3dE9xZ", Name: "  Jane Visitor  "}
	assert.NoError(t, form.Bind(nil))
	assert.Equal(t, "Jane Visitor", form.Name)
	assert.Equal(t, MemberStatusVisitor, form.MemberStatus, "member status defaults to visitor")

	form = &RegistrationForm{Token: "has spaces!", Name: "Jane"}
	assert.Error(t, form.Bind(nil), "token must be alphanumeric")

	form = &RegistrationForm{Token: "Ab3dE9xZ", Name: "Jane", Email: "not-an-email"}
	assert.Error(t, form.Bind(nil))
}

func TestAddressNormalizeCountry(t *testing.T) {
	addr := &Address{Country: "Indonesia"}
	addr.NormalizeCountry()
	assert.Equal(t, "ID", addr.Country)

	addr = &Address{Country: "Atlantis"}
	addr.NormalizeCountry()
	assert.Equal(t, "Atlantis", addr.Country, "unknown countries stay as typed")

	var nilAddr *Address
	nilAddr.NormalizeCountry() // must not panic
}
