package instance

import "regexp"

// connNameRE matches "project:region:instance" and the legacy
// domain-scoped "domain:project:region:instance" form, where domain:project
// together are treated as a single project component containing one colon.
var connNameRE = regexp.MustCompile(`^([^:]+(?::[^:]+)?):([^:]+):([^:]+)$`)

// ID is the parsed form of a Cloud SQL connection name.
type ID struct {
	Project  string
	Region   string
	Instance string
}

// ParseID validates and splits a connection name of the form
// "project:region:instance" or the legacy domain-scoped
// "example.com:project:region:instance" into its parts.
func ParseID(connName string) (ID, error) {
	m := connNameRE.FindStringSubmatch(connName)
	if m == nil {
		return ID{}, &InvalidIdentifierError{Value: connName}
	}
	return ID{
		Project:  m[1],
		Region:   m[2],
		Instance: m[3],
	}, nil
}

// String recomposes the identifier into its original colon-delimited form.
func (id ID) String() string {
	return id.Project + ":" + id.Region + ":" + id.Instance
}

// RegionalInstance returns the "region~instance" resource path segment used
// by the admin API.
func (id ID) RegionalInstance() string {
	return id.Region + "~" + id.Instance
}
