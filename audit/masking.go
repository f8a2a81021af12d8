package audit

import "strings"

// sensitiveFieldMarkers flags field names whose values get masked before
// any sink sees them. Grounded on infra/postgres/logger.go's sanitizeMap,
// extended with the mandate vault's field names since audit events now
// carry PaymentMethodData-shaped payloads the teacher never logged.
var sensitiveFieldMarkers = []string{
	"cardnumber", "card_number", "pan", "cvv", "cvc",
	"accountnumber", "account_number", "iban",
	"authorization", "apikey", "api_key", "secret", "token",
}

// Sanitize recursively masks sensitive fields in a structured payload
// before it is handed to any sink. The field-name heuristics and masking
// widths mirror infra/postgres/logger.go's SanitizeForLog/maskCardNumber/
// maskGenericSensitive, generalized away from the Turkish-provider field
// set toward the flow engine's own vocabulary.
func Sanitize(data map[string]any) map[string]any {
	sanitized := make(map[string]any, len(data))
	for key, value := range data {
		keyLower := strings.ToLower(key)
		switch {
		case strings.Contains(keyLower, "cardnumber") || strings.Contains(keyLower, "card_number") || strings.Contains(keyLower, "pan"):
			if s, ok := value.(string); ok {
				sanitized[key] = maskCardNumber(s)
			} else {
				sanitized[key] = "***REDACTED***"
			}
		case strings.Contains(keyLower, "cvv") || strings.Contains(keyLower, "cvc"):
			sanitized[key] = "***"
		case isSensitiveField(keyLower):
			if s, ok := value.(string); ok {
				sanitized[key] = maskGeneric(s)
			} else {
				sanitized[key] = "***REDACTED***"
			}
		default:
			sanitized[key] = sanitizeValue(value)
		}
	}
	return sanitized
}

func isSensitiveField(keyLower string) bool {
	for _, marker := range sensitiveFieldMarkers {
		if strings.Contains(keyLower, marker) {
			return true
		}
	}
	return false
}

func sanitizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Sanitize(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}

// maskCardNumber shows first 4 and last 4 digits, matching the teacher's
// convention for card-shaped values.
func maskCardNumber(raw string) string {
	cleaned := strings.ReplaceAll(strings.ReplaceAll(raw, " ", ""), "-", "")
	if len(cleaned) <= 8 {
		return "****"
	}
	return cleaned[:4] + "********" + cleaned[len(cleaned)-4:]
}

// maskGeneric shows first 2 and last 2 characters, matching the teacher's
// maskGenericSensitive.
func maskGeneric(raw string) string {
	if len(raw) <= 4 {
		return "***REDACTED***"
	}
	return raw[:2] + "***" + raw[len(raw)-2:]
}
