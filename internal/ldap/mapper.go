package ldap

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Description field conventions. Resource groups encode their metadata in the
// free-text description attribute: the "Resource:" prefix marks the group as
// a resource, and an optional "Owner:" marker introduces the owning account.
const (
	resourcePrefix = "Resource:"
	ownerMarker    = "Owner:"
)

// userAttributes is the attribute set fetched for user principals.
var userAttributes = []string{
	"sAMAccountName", "displayName", "employeeID", "title",
	"description", "department", "mail", "telephoneNumber",
	"memberOf", "objectGUID", "objectSid",
}

// groupAttributes is the attribute set fetched for group records.
var groupAttributes = []string{
	"cn", "sAMAccountName", "description", "member",
}

// UserFromEntry converts a raw directory entry into a UserPrincipal. The
// mapping is total: absent attributes become empty strings and an absent
// memberOf becomes an empty group list. Department is the first
// semicolon-separated segment of the description attribute.
func UserFromEntry(entry *ldap.Entry) UserPrincipal {
	if entry == nil {
		return UserPrincipal{}
	}

	description := entry.GetAttributeValue("description")

	return UserPrincipal{
		AccountName: entry.GetAttributeValue("sAMAccountName"),
		DisplayName: entry.GetAttributeValue("displayName"),
		EmployeeID:  entry.GetAttributeValue("employeeID"),
		Title:       entry.GetAttributeValue("title"),
		Department:  departmentFromDescription(description),
		Email:       entry.GetAttributeValue("mail"),
		Phone:       entry.GetAttributeValue("telephoneNumber"),
		Groups:      groupNamesFromDNs(entry.GetAttributeValues("memberOf")),
		ObjectGUID:  extractGUID(entry),
		ObjectSid:   extractSID(entry),
	}
}

// ResourceFromEntry converts a raw group entry into a ResourceGroup. The
// second return value is false when the group is not a resource group, i.e.
// its description does not start with the "Resource:" prefix.
func ResourceFromEntry(entry *ldap.Entry) (ResourceGroup, bool) {
	if entry == nil {
		return ResourceGroup{}, false
	}

	raw := entry.GetAttributeValue("description")
	if !strings.HasPrefix(raw, resourcePrefix) {
		return ResourceGroup{}, false
	}

	description, owner := decodeResourceDescription(raw)

	return ResourceGroup{
		Name:             entry.GetAttributeValue("cn"),
		Description:      description,
		GroupAccountName: entry.GetAttributeValue("sAMAccountName"),
		Owner:            owner,
		Members:          memberAccountNames(entry.GetAttributeValues("member")),
	}, true
}

// decodeResourceDescription splits the raw description of a resource group
// into its description text (after the "Resource:" prefix, trimmed) and its
// owner (trimmed remainder after the first "Owner:" marker, empty when the
// marker is absent).
func decodeResourceDescription(raw string) (description, owner string) {
	description = strings.TrimSpace(raw[len(resourcePrefix):])
	if i := strings.Index(raw, ownerMarker); i >= 0 {
		owner = strings.TrimSpace(raw[i+len(ownerMarker):])
	}
	return description, owner
}

// departmentFromDescription takes the first semicolon-separated segment of
// the free-text description attribute. Portal deployments encode the
// department there ("Engineering;Building 4;...").
func departmentFromDescription(description string) string {
	if description == "" {
		return ""
	}
	segment, _, _ := strings.Cut(description, ";")
	return segment
}

// groupNamesFromDNs reduces memberOf DNs to their leaf CN values, dropping
// entries without one. Order is preserved.
func groupNamesFromDNs(dns []string) []string {
	names := make([]string, 0, len(dns))
	for _, dn := range dns {
		if name := leafCN(dn); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// memberAccountNames reduces member DNs to their leaf CN values, filtering
// out blanks so a malformed member entry never produces an empty name.
func memberAccountNames(dns []string) []string {
	return groupNamesFromDNs(dns)
}

// leafCN extracts the leading CN value from a DN ("CN=Jane Doe,OU=..."),
// returning "" when the DN has no parseable leading CN. Values are used
// as-is; escaped commas inside the CN are handled by the DN parser.
func leafCN(dn string) string {
	parsed, err := ldap.ParseDN(dn)
	if err != nil || len(parsed.RDNs) == 0 {
		return fallbackLeafCN(dn)
	}
	rdn := parsed.RDNs[0]
	for _, attr := range rdn.Attributes {
		if strings.EqualFold(attr.Type, "CN") {
			return attr.Value
		}
	}
	return ""
}

// fallbackLeafCN handles values that are not valid DNs: plain names pass
// through so fake directories and odd schemas still resolve to something
// usable.
func fallbackLeafCN(dn string) string {
	dn = strings.TrimSpace(dn)
	if dn == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToUpper(dn), "CN=") {
		rest := dn[3:]
		if i := strings.IndexByte(rest, ','); i >= 0 {
			return rest[:i]
		}
		return rest
	}
	if strings.ContainsRune(dn, '=') {
		return ""
	}
	return dn
}
