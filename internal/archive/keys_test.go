package archive

import (
	"errors"
	"testing"
)

func TestTracklineKeyLayout(t *testing.T) {
	key, err := TracklineKey("20190222113324825195_7cb9a8c2-5d2a-4c91-ac35-13fd2340a589_pointData.xyz")
	if err != nil {
		t.Fatalf("TracklineKey: %v", err)
	}
	want := "csb/csv/2019/02/22/20190222113324825195_7cb9a8c2-5d2a-4c91-ac35-13fd2340a589_pointData.csv"
	if key != want {
		t.Errorf("key = %q, want %q", key, want)
	}
}

func TestTracklineKeyRejectsUnexpectedLayout(t *testing.T) {
	for _, name := range []string{
		"",
		"notastamp_7cb9a8c2-5d2a-4c91-ac35-13fd2340a589_pointData.xyz",
		"20190222113324825195_nouuid_pointData.xyz",
		"2019022211332482519_7cb9a8c2-5d2a-4c91-ac35-13fd2340a589_x.xyz", // 19 digits
	} {
		var parseErr *ParseError
		if _, err := TracklineKey(name); !errors.As(err, &parseErr) {
			t.Errorf("TracklineKey(%q) = %v, want ParseError", name, err)
		}
	}
}

func TestDateToken(t *testing.T) {
	token, ok := DateToken("BlueTopo_BH4PS5C8_20240117.tiff")
	if !ok || token != "20240117" {
		t.Errorf("DateToken = %q, %v", token, ok)
	}
	if _, ok := DateToken("20190222113324825195_7cb9a8c2_pointData.csv"); ok {
		t.Error("trackline names carry no publication token")
	}
}

func TestS3URLFromHTTP(t *testing.T) {
	got, err := S3URLFromHTTP(
		"https://noaa-ocs-nationalbathymetry-pds.s3.amazonaws.com/BlueTopo/BH4PS5C8/BlueTopo_BH4PS5C8_20240117.tiff",
		"noaa-ocs-nationalbathymetry-pds")
	if err != nil {
		t.Fatalf("S3URLFromHTTP: %v", err)
	}
	want := "s3://noaa-ocs-nationalbathymetry-pds/BlueTopo/BH4PS5C8/BlueTopo_BH4PS5C8_20240117.tiff"
	if got != want {
		t.Errorf("url = %q, want %q", got, want)
	}
}

func TestS3URLFromHTTPRejectsPathlessURL(t *testing.T) {
	var parseErr *ParseError
	if _, err := S3URLFromHTTP("https://example.com", "bucket"); !errors.As(err, &parseErr) {
		t.Errorf("expected ParseError, got %v", err)
	}
}
