package appointment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInsuredID(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		want       InsuredID
		constraint string
	}{
		{"five digits", "12345", "12345", ""},
		{"leading zeros kept", "00001", "00001", ""},
		{"trimmed", "  01234\t", "01234", ""},
		{"empty", "", "", "required"},
		{"blank", "   ", "", "required"},
		{"too short", "123", "", "length"},
		{"too long", "123456", "", "length"},
		{"letters", "12a45", "", "pattern"},
		{"sign", "+1234", "", "pattern"},
		{"separator", "12-45", "", "pattern"},
		{"unicode digits", "１２３４５", "", "length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewInsuredID(tt.raw)
			if tt.constraint == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, "insuredId", ve.Field)
			assert.Equal(t, []string{tt.constraint}, ve.Constraints)
		})
	}
}

func TestNewCountry(t *testing.T) {
	for _, raw := range []string{"PE", "pe", " Cl ", "cl"} {
		c, err := NewCountry(raw)
		require.NoError(t, err, raw)
		assert.Contains(t, SupportedCountries(), c)
	}

	for _, raw := range []string{"US", "", "  ", "PER", "P E", "CH"} {
		_, err := NewCountry(raw)
		var ve *ValidationError
		require.True(t, errors.As(err, &ve), raw)
		assert.Equal(t, "countryISO", ve.Field)
		assert.True(t, IsPermanent(err))
	}
}

func TestCountryConfig(t *testing.T) {
	pe := CountryPE.Config()
	assert.Equal(t, "Peru", pe.Name)
	assert.Equal(t, "America/Lima", pe.Timezone)
	assert.Equal(t, "PEN", pe.Currency)
	assert.Equal(t, "appointments-pe-queue", pe.QueueName)

	cl := CountryCL.Config()
	assert.Equal(t, "America/Santiago", cl.Timezone)
	assert.Equal(t, "CLP", cl.Currency)
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("connection refused")
	err := Infra("DynamoDB", "put item", cause)

	var ie *InfrastructureError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "DynamoDB", ie.Service)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, CodeInfrastructure, ErrorCode(err))
	assert.False(t, IsPermanent(err))

	nf := &NotFoundError{ResourceType: "Appointment", ResourceID: "x"}
	assert.Same(t, nf, Infra("DynamoDB", "get", nf))
	assert.Equal(t, CodeNotFound, ErrorCode(nf))
	assert.Nil(t, Infra("DynamoDB", "get", nil))
	assert.Equal(t, "", ErrorCode(cause))
}
