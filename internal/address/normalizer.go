package address

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/internal/metrics"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"gopkg.in/yaml.v3"
)

const MinPostalCodeLength = 5

//go:embed countries.yaml
var defaultTable []byte

// Table maps country names to ISO 3166-1 alpha-2 codes.
type Table struct {
	Default   string            `yaml:"default"`
	Countries map[string]string `yaml:"countries"`
}

func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	if !isAlpha2(t.Default) {
		return nil, fmt.Errorf("%w: default %q is not a 2-letter code", ErrInvalidTable, t.Default)
	}
	for name, code := range t.Countries {
		if !isAlpha2(code) {
			return nil, fmt.Errorf("%w: %q maps to %q", ErrInvalidTable, name, code)
		}
	}
	return &t, nil
}

// DefaultTable returns the built-in table.
func DefaultTable() *Table {
	t, err := ParseTable(defaultTable)
	if err != nil {
		panic(err)
	}
	return t
}

// LoadTable reads a YAML table from path, or returns the built-in one when path is empty.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read country table: %w", err)
	}
	return ParseTable(data)
}

type Normalizer struct {
	codes    map[string]string
	fallback string
}

func NewNormalizer(t *Table) *Normalizer {
	codes := make(map[string]string, len(t.Countries))
	for name, code := range t.Countries {
		codes[strings.ToLower(strings.TrimSpace(name))] = code
	}
	return &Normalizer{codes: codes, fallback: t.Default}
}

// Normalize validates the address and returns a copy with the postal code padded and the country
// converted to a 2-letter code.
func (n *Normalizer) Normalize(ctx context.Context, addr domain.ShippingAddress) (domain.ShippingAddress, error) {
	out := addr
	out.Street = strings.TrimSpace(addr.Street)
	out.City = strings.TrimSpace(addr.City)
	out.State = strings.TrimSpace(addr.State)
	out.PhoneNumber = strings.TrimSpace(addr.PhoneNumber)

	if out.Street == "" {
		return domain.ShippingAddress{}, fmt.Errorf("%w: street", ErrMissingField)
	}
	if out.City == "" {
		return domain.ShippingAddress{}, fmt.Errorf("%w: city", ErrMissingField)
	}

	postal, err := NormalizePostalCode(addr.PostalCode)
	if err != nil {
		return domain.ShippingAddress{}, err
	}
	out.PostalCode = postal
	out.Country = n.NormalizeCountry(ctx, addr.Country)
	return out, nil
}

// NormalizePostalCode trims surrounding space and accepts numeric codes of at least five digits.
// Leading zeros are significant and kept as sent.
func NormalizePostalCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrPostalCodeNotDigit, code)
		}
	}
	if len(code) < MinPostalCodeLength {
		return "", fmt.Errorf("%w: %q", ErrPostalCodeTooShort, code)
	}
	return code, nil
}

// NormalizeCountry never fails: unknown names fall back to the table default and are logged.
func (n *Normalizer) NormalizeCountry(ctx context.Context, country string) string {
	trimmed := strings.TrimSpace(country)
	if trimmed == "" {
		return n.fallback
	}
	if isAlpha2(trimmed) {
		return trimmed
	}
	if code, ok := n.codes[strings.ToLower(trimmed)]; ok {
		return code
	}
	metrics.UnmappedCountries.Inc()
	logger.FromContext(ctx).Warn("country not in normalization table, using fallback",
		"country", trimmed, "fallback", n.fallback)
	return n.fallback
}

func isAlpha2(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < 2; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
