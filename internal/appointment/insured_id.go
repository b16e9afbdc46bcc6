package appointment

import (
	"fmt"
	"strings"
)

const insuredIDLength = 5

// InsuredID is exactly five ASCII digits. Kept as a string so leading zeros
// survive.
type InsuredID string

// NewInsuredID trims raw and validates it.
func NewInsuredID(raw string) (InsuredID, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", newValidationError("insuredId", "insuredId is required", "required")
	}
	if len(v) != insuredIDLength {
		return "", newValidationError("insuredId",
			fmt.Sprintf("insuredId must have exactly %d digits", insuredIDLength), "length")
	}
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return "", newValidationError("insuredId", "insuredId must contain only digits", "pattern")
		}
	}
	return InsuredID(v), nil
}

func (id InsuredID) String() string {
	return string(id)
}
