package report

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BusinessProfile — шапка и подвал печатного чека.
type BusinessProfile struct {
	Name           string `yaml:"name"`
	Address        string `yaml:"address"`
	Phone          string `yaml:"phone"`
	TaxID          string `yaml:"tax_id"`
	CurrencySymbol string `yaml:"currency_symbol"`
	Footer         string `yaml:"footer"`
	// Location — часовой пояс даты на чеке (IANA), например America/Tegucigalpa.
	Location string `yaml:"location"`
}

// DefaultBusinessProfile возвращает профиль магазина по умолчанию.
func DefaultBusinessProfile() BusinessProfile {
	return BusinessProfile{
		Name:           "Taller de Repuestos",
		Address:        "El Progreso, Yoro",
		Phone:          "9999-9999",
		CurrencySymbol: "L.",
		Footer:         "¡Gracias por su compra!",
		Location:       "America/Tegucigalpa",
	}
}

// LoadBusinessProfile читает YAML-профиль; незаданные поля берутся из профиля по умолчанию.
// Пустой путь означает профиль по умолчанию.
func LoadBusinessProfile(path string) (BusinessProfile, error) {
	profile := DefaultBusinessProfile()
	if path == "" {
		return profile, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return BusinessProfile{}, fmt.Errorf("read business profile: %w", err)
	}
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return BusinessProfile{}, fmt.Errorf("parse business profile %s: %w", path, err)
	}
	if err := profile.Validate(); err != nil {
		return BusinessProfile{}, err
	}
	return profile, nil
}

// Validate проверяет обязательные поля профиля.
func (p BusinessProfile) Validate() error {
	if p.Name == "" {
		return errors.New("business profile name is required")
	}
	if p.Location != "" {
		if _, err := loadLocation(p.Location); err != nil {
			return fmt.Errorf("business profile location: %w", err)
		}
	}
	return nil
}
