package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/domain"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/repository"
)

// Ensure upserts the system preset library so updates ship automatically.
// System presets are matched by (name, environment, api kind); custom presets
// are never touched.
func Ensure(ctx context.Context, presets repository.PresetRepository, log *slog.Logger) error {
	now := time.Now().UTC()
	for _, preset := range systemPresets() {
		existing, err := presets.FindSystemPreset(ctx, preset.Name, preset.Environment, preset.APIKind)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("find system preset %q: %w", preset.Name, err)
		}
		if existing == nil {
			preset.ID = uuid.NewString()
			preset.CreatedAt = now
			preset.UpdatedAt = now
			if err := presets.CreatePreset(ctx, &preset); err != nil {
				return fmt.Errorf("seed preset %q: %w", preset.Name, err)
			}
			log.Info("system preset created", "name", preset.Name)
			continue
		}
		preset.ID = existing.ID
		preset.CreatedAt = existing.CreatedAt
		preset.UpdatedAt = now
		if err := presets.UpdatePreset(ctx, &preset); err != nil {
			return fmt.Errorf("refresh preset %q: %w", preset.Name, err)
		}
	}
	return nil
}

func systemPresets() []domain.Preset {
	return []domain.Preset{
		{
			Name:           "REST: Sample Sale (Sandbox)",
			APIKind:        domain.APIKindRest,
			Environment:    domain.EnvSandbox,
			RestMethod:     "POST",
			PathOrEndpoint: "/v2/transactions",
			Headers:        map[string]string{"Content-Type": "application/json"},
			BodyTemplate: `{
  "command": "cc:sale",
  "amount": "5.00",
  "amount_detail": {
    "tax": "1.00",
    "tip": "0.50"
  },
  "creditcard": {
    "cardholder": "{{cardholder}}",
    "number": "{{cardNumber}}",
    "expiration": "{{expiration}}",
    "cvc": "{{cvc}}",
    "avs_street": "{{avsStreet}}",
    "avs_zip": "{{avsZip}}"
  },
  "invoice": "INV-{{timestamp}}"
}`,
			Variables: map[string]string{
				"cardholder": "John Doe",
				"cardNumber": "4000100011112224",
				"expiration": "1228",
				"cvc":        "123",
				"avsStreet":  "1234 Main",
				"avsZip":     "12345",
			},
			Notes:    "Matches USAePay REST docs sample for /v2/transactions (cc:sale).",
			Tags:     []string{"quick", "rest", "sale"},
			IsQuick:  true,
			IsSystem: true,
		},
		{
			Name:        "SOAP: Sample Payment (Sandbox)",
			APIKind:     domain.APIKindSoap,
			Environment: domain.EnvSandbox,
			SoapAction:  "ueSoapServer/ProcessTransaction",
			Headers:     map[string]string{"Content-Type": "text/xml; charset=utf-8"},
			BodyTemplate: `<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:ue="urn:usaepay">
  <soapenv:Header/>
  <soapenv:Body>
    <ue:ProcessTransaction>
      <ue:Token>{{token}}</ue:Token>
      <ue:Amount>{{amount}}</ue:Amount>
      <ue:Command>sale</ue:Command>
    </ue:ProcessTransaction>
  </soapenv:Body>
</soapenv:Envelope>`,
			Variables: map[string]string{
				"token":  "sandbox-token",
				"amount": "12.34",
			},
			Notes:    "SOAP envelope placeholder. Replace with valid USAePay credentials/fields.",
			Tags:     []string{"quick", "soap"},
			IsQuick:  true,
			IsSystem: true,
		},
		{
			Name:           "REST: Malformed JSON (Sandbox)",
			APIKind:        domain.APIKindRest,
			Environment:    domain.EnvSandbox,
			RestMethod:     "POST",
			PathOrEndpoint: "/v2/transactions",
			Headers:        map[string]string{"Content-Type": "application/json"},
			BodyTemplate:   `{ "command": "cc:sale", "amount": "5.00", "creditcard": { "number": "4000100011112224", `,
			Notes:          "Intentional malformed JSON to test validation errors.",
			Tags:           []string{"quick", "rest", "malformed"},
			IsQuick:        true,
			IsSystem:       true,
		},
	}
}
