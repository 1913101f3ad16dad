package handlers

import (
	"strings"

	domain "github.com/dulcepan/api/internal/domain"
)

// moneyAmount carries minor units internally while rendering and accepting
// 2-dp decimals at the JSON boundary. Both `150.50` and `"150.50"` parse.
type moneyAmount int64

func (m moneyAmount) MarshalJSON() ([]byte, error) {
	return []byte(domain.FormatAmount(int64(m))), nil
}

func (m *moneyAmount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		*m = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)
	amount, err := domain.ParseAmount(raw)
	if err != nil {
		return err
	}
	*m = moneyAmount(amount)
	return nil
}
