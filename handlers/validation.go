package handlers

import (
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
	"github.com/iankiku/agentsauthority-chatbot-sub003/utils"
)

// Request limits
const (
	MaxBrandNameLength = 200
	MaxQualifierLength = 200
	MaxURLLength       = 2048
)

var scriptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<script`),
	regexp.MustCompile(`javascript:`),
	regexp.MustCompile(`vbscript:`),
	regexp.MustCompile(`on(load|error)=`),
	regexp.MustCompile(`(eval|alert|prompt|confirm)\(`),
	regexp.MustCompile(`document\.`),
	regexp.MustCompile(`window\.`),
}

// ValidateSubject checks and canonicalizes an analysis request. The brand
// URL is fetched server side, so private and local hosts are refused.
func ValidateSubject(req CreateAnalysisRequest) (types.AnalysisSubject, error) {
	name := strings.TrimSpace(req.BrandName)
	if name == "" {
		return types.AnalysisSubject{}, &types.ValidationError{Field: "brandName", Message: "is required"}
	}
	if utf8.RuneCountInString(name) > MaxBrandNameLength {
		return types.AnalysisSubject{}, &types.ValidationError{Field: "brandName", Message: "must be at most 200 characters"}
	}
	if hasScriptInjection(name) {
		return types.AnalysisSubject{}, &types.ValidationError{Field: "brandName", Message: "contains potentially malicious content"}
	}

	qualifier := strings.TrimSpace(req.Qualifier)
	if utf8.RuneCountInString(qualifier) > MaxQualifierLength {
		return types.AnalysisSubject{}, &types.ValidationError{Field: "qualifier", Message: "must be at most 200 characters"}
	}
	if hasScriptInjection(qualifier) {
		return types.AnalysisSubject{}, &types.ValidationError{Field: "qualifier", Message: "contains potentially malicious content"}
	}

	brandURL, err := validateBrandURL(req.BrandURL)
	if err != nil {
		return types.AnalysisSubject{}, err
	}

	return types.AnalysisSubject{
		BrandName: name,
		BrandURL:  brandURL,
		Qualifier: qualifier,
	}, nil
}

func validateBrandURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &types.ValidationError{Field: "brandUrl", Message: "is required"}
	}
	if len(raw) > MaxURLLength {
		return "", &types.ValidationError{Field: "brandUrl", Message: "exceeds maximum allowed length"}
	}
	if !utils.IsHTTPURL(raw) {
		return "", &types.ValidationError{Field: "brandUrl", Message: "must be an absolute http or https URL"}
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", &types.ValidationError{Field: "brandUrl", Message: "invalid URL format"}
	}
	if isPrivateOrLocalhost(strings.ToLower(parsed.Hostname())) {
		return "", &types.ValidationError{Field: "brandUrl", Message: "private networks and localhost are not allowed"}
	}
	for _, values := range parsed.Query() {
		for _, value := range values {
			if hasScriptInjection(value) {
				return "", &types.ValidationError{Field: "brandUrl", Message: "contains potentially malicious content"}
			}
		}
	}

	return utils.NormalizeURL(raw), nil
}

// isPrivateOrLocalhost checks if the host is a private IP or localhost
func isPrivateOrLocalhost(host string) bool {
	switch host {
	case "localhost", "0.0.0.0":
		return true
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip.IsPrivate() || ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast()
	}

	privateDomainSuffixes := []string{
		".local", ".localhost", ".internal", ".corp", ".home", ".lan",
	}
	for _, suffix := range privateDomainSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

func hasScriptInjection(value string) bool {
	lower := strings.ToLower(value)
	for _, pattern := range scriptPatterns {
		if pattern.MatchString(lower) {
			return true
		}
	}
	return false
}
