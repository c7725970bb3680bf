package archive

import (
	"fmt"
	"net/url"
	"regexp"
)

// ParseError reports a catalog file name that does not match the layout the
// key derivation depends on. Refusing to guess beats producing a key that
// silently probes the wrong object.
type ParseError struct {
	Name   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot derive archive key from %q: %s", e.Name, e.Reason)
}

// Trackline catalog names open with a 20-digit collection stamp and a UUID,
// followed by a short format suffix. The stamp's leading digits encode the
// collection date, which the archive uses as the key's directory path.
var tracklineNameRE = regexp.MustCompile(`^(\d{20})_([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})`)

// TracklineKey derives the archive object key for a trackline catalog name:
// csb/csv/YYYY/MM/DD/<stamp>_<uuid>_pointData.csv.
func TracklineKey(name string) (string, error) {
	m := tracklineNameRE.FindStringSubmatch(name)
	if m == nil {
		return "", &ParseError{Name: name, Reason: "expected a 20-digit stamp and a UUID"}
	}
	stamp, id := m[1], m[2]
	return fmt.Sprintf("csb/csv/%s/%s/%s/%s_%s_pointData.csv",
		stamp[:4], stamp[4:6], stamp[6:8], stamp, id), nil
}

// Raster file names embed a publication date before the extension.
var dateTokenRE = regexp.MustCompile(`_(\d{8})\.`)

// DateToken extracts the embedded YYYYMMDD publication token from a file
// name or key, if present.
func DateToken(name string) (string, bool) {
	m := dateTokenRE.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// S3URL builds the s3:// locator for one object.
func S3URL(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}

// S3URLFromHTTP rewrites a catalog HTTPS locator into the equivalent s3://
// URL for the given bucket, preserving the object path.
func S3URLFromHTTP(rawURL, bucket string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", &ParseError{Name: rawURL, Reason: "not a valid URL"}
	}
	if parsed.Path == "" {
		return "", &ParseError{Name: rawURL, Reason: "no object path"}
	}
	parsed.Scheme = "s3"
	parsed.Host = bucket
	parsed.RawQuery = ""
	return parsed.String(), nil
}
