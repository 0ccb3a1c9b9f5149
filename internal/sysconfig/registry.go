package sysconfig

import "sort"

// Config categories.
const (
	CategoryEmail    = "email"
	CategorySMS      = "sms"
	CategoryWhatsApp = "whatsapp"
	CategoryAI       = "ai"
	CategoryAuth     = "auth"
	CategorySystem   = "system"
)

// Key describes one runtime-tunable setting. Sensitive keys are encrypted
// at rest and masked in listings; writes are restricted to this registry.
type Key struct {
	Name      string
	Category  string
	Sensitive bool
	Default   string
}

var registry = map[string]Key{
	"SENDGRID_API_KEY":       {Name: "SENDGRID_API_KEY", Category: CategoryEmail, Sensitive: true},
	"FROM_NAME":              {Name: "FROM_NAME", Category: CategoryEmail, Default: "RatePro"},
	"FROM_EMAIL":             {Name: "FROM_EMAIL", Category: CategoryEmail, Default: "no-reply@ratepro.io"},
	"SMS_PROVIDER":           {Name: "SMS_PROVIDER", Category: CategorySMS, Default: "twilio"},
	"TWILIO_ACCOUNT_SID":     {Name: "TWILIO_ACCOUNT_SID", Category: CategorySMS},
	"TWILIO_AUTH_TOKEN":      {Name: "TWILIO_AUTH_TOKEN", Category: CategorySMS, Sensitive: true},
	"TWILIO_FROM_NUMBER":     {Name: "TWILIO_FROM_NUMBER", Category: CategorySMS},
	"META_WHATSAPP_TOKEN":    {Name: "META_WHATSAPP_TOKEN", Category: CategoryWhatsApp, Sensitive: true},
	"META_WHATSAPP_PHONE_ID": {Name: "META_WHATSAPP_PHONE_ID", Category: CategoryWhatsApp},
	"GEMINI_API_KEY":         {Name: "GEMINI_API_KEY", Category: CategoryAI, Sensitive: true},
	"ENABLE_QUEUES":          {Name: "ENABLE_QUEUES", Category: CategorySystem, Default: "false"},
	"OTP_EXPIRE_MINUTES":     {Name: "OTP_EXPIRE_MINUTES", Category: CategoryAuth, Default: "10"},
	"JWT_SECRET":             {Name: "JWT_SECRET", Category: CategoryAuth, Sensitive: true},
	"REFRESH_TOKEN_SECRET":   {Name: "REFRESH_TOKEN_SECRET", Category: CategoryAuth, Sensitive: true},
}

// Lookup returns the registered key, if any.
func Lookup(name string) (Key, bool) {
	k, ok := registry[name]
	return k, ok
}

// Keys returns every registered key sorted by name.
func Keys() []Key {
	out := make([]Key, 0, len(registry))
	for _, k := range registry {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// KeysByCategory returns the registered keys of one category, sorted.
func KeysByCategory(category string) []Key {
	var out []Key
	for _, k := range Keys() {
		if k.Category == category {
			out = append(out, k)
		}
	}
	return out
}
