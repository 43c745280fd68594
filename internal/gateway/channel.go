package gateway

import (
	"encoding/json"
	"strings"
)

// ExtractPaymentChannel menurunkan label channel yang enak dibaca manusia dari
// payment_type + field spesifik gateway di respons mentah. Tipe yang tidak
// dikenal jatuh ke string mentahnya.
func ExtractPaymentChannel(paymentType string, raw json.RawMessage) string {
	var body struct {
		VaNumbers []struct {
			Bank string `json:"bank"`
		} `json:"va_numbers"`
		PermataVaNumber string `json:"permata_va_number"`
		Issuer          string `json:"issuer"`
		Acquirer        string `json:"acquirer"`
		Store           string `json:"store"`
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}

	switch paymentType {
	case "bank_transfer":
		if len(body.VaNumbers) > 0 && body.VaNumbers[0].Bank != "" {
			return strings.ToUpper(body.VaNumbers[0].Bank) + " Virtual Account"
		}
		if body.PermataVaNumber != "" {
			return "Permata Virtual Account"
		}
		return "Bank Transfer"
	case "echannel":
		return "Mandiri Bill Payment"
	case "gopay":
		return "GoPay"
	case "shopeepay":
		return "ShopeePay"
	case "qris":
		if body.Issuer != "" {
			return "QRIS (" + body.Issuer + ")"
		}
		if body.Acquirer != "" {
			return "QRIS (" + body.Acquirer + ")"
		}
		return "QRIS"
	case "credit_card":
		return "Kartu Kredit"
	case "cstore":
		if body.Store != "" {
			return body.Store
		}
		return "Convenience Store"
	default:
		return paymentType
	}
}
