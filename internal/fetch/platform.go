// Package fetch - platform.go provides ATS platform detection and platform-specific selectors.
package fetch

import (
	"net/url"
	"strings"
)

// Platform represents a known applicant tracking system.
type Platform string

const (
	// PlatformGreenhouse is the Greenhouse ATS platform
	PlatformGreenhouse Platform = "greenhouse"
	// PlatformLever is the Lever ATS platform
	PlatformLever Platform = "lever"
	// PlatformWorkday is the Workday ATS platform
	PlatformWorkday Platform = "workday"
	// PlatformAshby is the Ashby ATS platform
	PlatformAshby Platform = "ashbyhq"
	// PlatformICIMS is the iCIMS ATS platform
	PlatformICIMS Platform = "icims"
	// PlatformSmartRecruiters is the SmartRecruiters ATS platform
	PlatformSmartRecruiters Platform = "smartrecruiters"
	// PlatformUnknown is an unrecognized platform
	PlatformUnknown Platform = "unknown"
)

// platformHosts maps host fragments to platforms, checked in order.
var platformHosts = []struct {
	fragment string
	platform Platform
}{
	{"greenhouse.io", PlatformGreenhouse},
	{"lever.co", PlatformLever},
	{"myworkdayjobs.com", PlatformWorkday},
	{"workday.com", PlatformWorkday},
	{"ashbyhq.com", PlatformAshby},
	{"icims.com", PlatformICIMS},
	{"smartrecruiters.com", PlatformSmartRecruiters},
}

// KnownPlatforms lists every ATS DetectPlatform can return.
func KnownPlatforms() []Platform {
	return []Platform{
		PlatformGreenhouse,
		PlatformLever,
		PlatformWorkday,
		PlatformAshby,
		PlatformICIMS,
		PlatformSmartRecruiters,
	}
}

// DetectPlatform identifies the ATS platform from a URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}
	host := strings.ToLower(parsed.Hostname())
	for _, ph := range platformHosts {
		if strings.Contains(host, ph.fragment) {
			return ph.platform
		}
	}
	return PlatformUnknown
}

// IsATS reports whether the URL is hosted by a known ATS.
func IsATS(urlStr string) bool {
	return DetectPlatform(urlStr) != PlatformUnknown
}

// PlatformContentSelectors returns description selectors for a platform.
func PlatformContentSelectors(platform Platform) []string {
	switch platform {
	case PlatformGreenhouse:
		return []string{
			".job__description.body",
			".job__description",
			".job-description__content",
			"#content",
			".job-post-container",
		}
	case PlatformLever:
		return []string{
			".posting-page",
			".section-wrapper.page-full-width",
			".posting-description",
			".content",
		}
	case PlatformWorkday:
		return []string{
			"[data-automation-id='jobDescription']",
			".job-description",
		}
	case PlatformAshby:
		return []string{
			"._descriptionText_oj0x8_198",
			"[class*='descriptionText']",
			"main",
		}
	case PlatformSmartRecruiters:
		return []string{
			".job-sections",
			"[itemprop='description']",
		}
	default:
		return JobPostingSelectors()
	}
}

// JobPostingSelectors returns generic selectors for job description content.
func JobPostingSelectors() []string {
	return []string{
		"[itemprop='description']",
		".job-description",
		".description",
		"article",
		"main",
	}
}

// PlatformNoiseSelectors returns noise exclusion selectors for a platform.
func PlatformNoiseSelectors(platform Platform) []string {
	common := []string{
		"form",
		"#application-form",
		".application-form",
		".apply-button-container",
		".voluntary-disclosure",
		".eeo-statement",
		".social-share",
		".cookie-consent",
	}

	switch platform {
	case PlatformGreenhouse:
		return append(common,
			".application--wrapper",
			".voluntary-self-id",
			"#usa_self_id_section",
		)
	case PlatformLever:
		return append(common,
			".apply-section",
			".posting-apply",
		)
	case PlatformWorkday:
		return append(common,
			"[data-automation-id='applyButton']",
		)
	default:
		return common
	}
}
