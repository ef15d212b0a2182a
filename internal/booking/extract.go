package booking

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"document-assistant/internal/models"
)

// ParseFields decodes the model's extraction reply. A reply wrapped in a
// markdown code fence is unwrapped first. Anything that is not a JSON object
// yields all-nil fields. Numbers are kept as their literal text so a phone
// number returned unquoted still validates.
func ParseFields(reply string) models.BookingFields {
	raw := stripFence(reply)

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		log.Warn().Err(err).Str("reply", reply).Msg("Failed to parse extraction reply")
		return models.BookingFields{}
	}

	return models.BookingFields{
		Name:        stringField(obj, "name"),
		Email:       stringField(obj, "email"),
		PhoneNumber: stringField(obj, "phone_number"),
		Date:        stringField(obj, "date"),
		Time:        stringField(obj, "time"),
	}
}

func stripFence(reply string) string {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "```") {
		parts := strings.Split(s, "```")
		s = strings.TrimPrefix(parts[1], "json")
	}
	return strings.TrimSpace(s)
}

func stringField(obj map[string]any, key string) *string {
	var s string
	switch v := obj[key].(type) {
	case string:
		s = strings.TrimSpace(v)
	case json.Number:
		s = v.String()
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	return &s
}
