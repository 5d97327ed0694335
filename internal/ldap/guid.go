package ldap

import (
	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
)

// extractGUID decodes the binary objectGUID attribute into its canonical
// string form. Active Directory stores the first three GUID fields
// little-endian, so the bytes are reordered before parsing. Returns ""
// when the attribute is absent or malformed.
func extractGUID(entry *ldap.Entry) string {
	raw := entry.GetRawAttributeValue("objectGUID")
	if len(raw) != 16 {
		return ""
	}

	ordered := make([]byte, 16)
	copy(ordered, raw)
	ordered[0], ordered[1], ordered[2], ordered[3] = raw[3], raw[2], raw[1], raw[0]
	ordered[4], ordered[5] = raw[5], raw[4]
	ordered[6], ordered[7] = raw[7], raw[6]

	id, err := uuid.FromBytes(ordered)
	if err != nil {
		return ""
	}
	return id.String()
}
