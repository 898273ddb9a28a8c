package device

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// DeviceIDHeader lets native clients send their installation id explicitly
const DeviceIDHeader = "X-Device-ID"

// FingerprintData contains the request components used when a client does
// not supply its own device id
type FingerprintData struct {
	UserAgent        string
	AcceptHeaders    string
	Timezone         string
	ScreenResolution string
	DeviceID         string
}

// GenerateFingerprint returns the stable identifier for a device.
// An explicit device id wins; otherwise it is a SHA-256 of the browser headers.
func GenerateFingerprint(data FingerprintData) string {
	if data.DeviceID != "" {
		return data.DeviceID
	}
	combined := fmt.Sprintf("%s|%s|%s|%s",
		data.UserAgent,
		data.AcceptHeaders,
		data.Timezone,
		data.ScreenResolution,
	)
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

// ExtractFingerprintDataFromRequest extracts fingerprint data from an HTTP request
func ExtractFingerprintDataFromRequest(r *http.Request) FingerprintData {
	acceptHeaders := r.Header.Get("Accept") + "|" +
		r.Header.Get("Accept-Language") + "|" +
		r.Header.Get("Accept-Encoding")

	return FingerprintData{
		UserAgent:        r.UserAgent(),
		AcceptHeaders:    acceptHeaders,
		Timezone:         r.Header.Get("Timezone"),
		ScreenResolution: r.Header.Get("Screen-Resolution"),
		DeviceID:         strings.TrimSpace(r.Header.Get(DeviceIDHeader)),
	}
}

// DeviceInfoFromRequest fills the gaps of a client supplied descriptor from
// the request headers. Fields the client sent are kept as is.
func DeviceInfoFromRequest(r *http.Request, info DeviceInfo) DeviceInfo {
	if info.DeviceID == "" {
		info.DeviceID = GenerateFingerprint(ExtractFingerprintDataFromRequest(r))
	}
	ua := r.UserAgent()
	if info.Name == "" {
		info.Name = determineDeviceName(ua)
	}
	if info.Platform == "" {
		info.Platform = determinePlatform(ua)
	}
	return info
}

// determineDeviceName names the browser or app from the user agent
func determineDeviceName(userAgent string) string {
	switch {
	case userAgent == "":
		return "Unknown Device"
	case contains(userAgent, "Edg/"):
		return "Edge"
	case contains(userAgent, "OPR/"), contains(userAgent, "Opera"):
		return "Opera"
	case contains(userAgent, "Firefox"):
		return "Firefox"
	case contains(userAgent, "Chrome"):
		return "Chrome"
	case contains(userAgent, "Safari"):
		return "Safari"
	case contains(userAgent, "okhttp"), contains(userAgent, "CFNetwork"):
		return "Mobile App"
	}
	return "Unknown Browser"
}

// determinePlatform names the operating system from the user agent.
// Mobile systems are matched first since their agents also mention desktop ones.
func determinePlatform(userAgent string) string {
	switch {
	case contains(userAgent, "iPhone"), contains(userAgent, "iPad"), contains(userAgent, "iPod"):
		return "iOS"
	case contains(userAgent, "Android"):
		return "Android"
	case contains(userAgent, "Windows"):
		return "Windows"
	case contains(userAgent, "Mac OS X"), contains(userAgent, "Macintosh"):
		return "macOS"
	case contains(userAgent, "CrOS"):
		return "ChromeOS"
	case contains(userAgent, "Linux"):
		return "Linux"
	}
	return "Unknown"
}

func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
