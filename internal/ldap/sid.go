package ldap

import (
	"github.com/bwmarrin/go-objectsid"
	"github.com/go-ldap/ldap/v3"
)

// extractSID decodes the binary objectSid attribute into its canonical
// S-1-5-... string form. Returns "" when the attribute is absent or too
// short to decode.
func extractSID(entry *ldap.Entry) string {
	raw := entry.GetRawAttributeValue("objectSid")
	if len(raw) < 8 {
		return ""
	}
	return objectsid.Decode(raw).String()
}
