package domain

import (
	"fmt"
	"strings"
)

// Platform is a target distribution channel for generated clips
type Platform string

// Supported platforms
const (
	PlatformYouTubeShorts  Platform = "youtube_shorts"
	PlatformYouTubeAds     Platform = "youtube_ads"
	PlatformDisplayAds     Platform = "display_ads"
	PlatformPerformanceMax Platform = "performance_max"
)

var platformOrder = []Platform{
	PlatformYouTubeShorts,
	PlatformYouTubeAds,
	PlatformDisplayAds,
	PlatformPerformanceMax,
}

var platformNames = map[Platform]string{
	PlatformYouTubeShorts:  "YouTube Shorts",
	PlatformYouTubeAds:     "YouTube Ads",
	PlatformDisplayAds:     "Display Ads",
	PlatformPerformanceMax: "Performance Max",
}

var platformAspectRatios = map[Platform]string{
	PlatformYouTubeShorts:  "9:16",
	PlatformYouTubeAds:     "16:9",
	PlatformDisplayAds:     "1:1",
	PlatformPerformanceMax: "16:9",
}

// Platforms returns the supported platforms in canonical order
func Platforms() []Platform {
	out := make([]Platform, len(platformOrder))
	copy(out, platformOrder)
	return out
}

// ParsePlatform accepts a platform name in any case, with '-' or '_' separators
func ParsePlatform(raw string) (Platform, error) {
	p := Platform(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_"))
	if _, ok := platformNames[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, raw)
	}
	return p, nil
}

// ParsePlatforms parses and de-duplicates a platform list, keeping canonical order
func ParsePlatforms(raw []string) ([]Platform, error) {
	seen := make(map[Platform]bool, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		p, err := ParsePlatform(r)
		if err != nil {
			return nil, err
		}
		seen[p] = true
	}
	if len(seen) == 0 {
		return nil, ErrNoPlatforms
	}

	out := make([]Platform, 0, len(seen))
	for _, p := range platformOrder {
		if seen[p] {
			out = append(out, p)
		}
	}
	return out, nil
}

// DisplayName returns the human readable platform name
func (p Platform) DisplayName() string {
	if name, ok := platformNames[p]; ok {
		return name
	}
	return string(p)
}

// AspectRatio returns the frame shape clips for the platform are cut to
func (p Platform) AspectRatio() string {
	return platformAspectRatios[p]
}

// String implements fmt.Stringer
func (p Platform) String() string {
	return string(p)
}

// PlatformStrings converts platforms to their wire names
func PlatformStrings(ps []Platform) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}
