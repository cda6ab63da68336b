// Package preferences keeps the per-user interface configuration in two tiers:
// remote metadata in the user_preferences table and oversized inline assets in
// a local key-value cache. Load merges defaults, the remote row and the cache.
package preferences

import (
	"errors"
	"strings"
)

const (
	// LocalAssetSentinel replaces a background that lives only in the asset cache.
	LocalAssetSentinel = "(Local Data Asset)"

	// InlineDataPrefix marks an inline data URL.
	InlineDataPrefix = "data:"

	// MaxRemoteAssetBytes is the largest asset value stored in the remote row.
	MaxRemoteAssetBytes = 64 << 10

	// BackgroundKey and AlarmKey are the asset cache keys per user.
	BackgroundKey = "nexus_bg_data"
	AlarmKey      = "nexus_alarm_data"

	DefaultLanguage   = "English"
	DefaultBackground = "https://images.unsplash.com/photo-1451187580459-43490279c0fa?q=80&w=2072&auto=format&fit=crop"
)

var ErrNoPreferences = errors.New("preferences: no stored preferences")

type UIPreference struct {
	ThemeName             string  `json:"themeName"`
	BackgroundImage       string  `json:"backgroundImage"`
	BackgroundType        string  `json:"backgroundType" validate:"oneof=image video"`
	BackgroundEffect      string  `json:"backgroundEffect" validate:"oneof=none snow rain embers matrix breathe"`
	BlurIntensity         float64 `json:"blurIntensity" validate:"gte=0,lte=100"`
	Transparency          float64 `json:"transparency" validate:"gte=0,lte=1"`
	BackgroundBrightness  float64 `json:"backgroundBrightness" validate:"gte=0,lte=100"`
	AccentColor           string  `json:"accentColor" validate:"max=32"`
	AnimationSpeed        string  `json:"animationSpeed" validate:"oneof=slow normal fast"`
	DefaultAlarmSound     string  `json:"defaultAlarmSound,omitempty"`
	DefaultAlarmSoundName string  `json:"defaultAlarmSoundName,omitempty" validate:"max=200"`
	Language              string  `json:"language,omitempty" validate:"max=64"`
}

// Defaults is the configuration every user starts from.
func Defaults() UIPreference {
	return UIPreference{
		ThemeName:            "Nexus Default",
		BackgroundImage:      DefaultBackground,
		BackgroundType:       "image",
		BackgroundEffect:     "breathe",
		BlurIntensity:        12,
		Transparency:         0.15,
		BackgroundBrightness: 35,
		AccentColor:          "#6366f1",
		AnimationSpeed:       "normal",
		Language:             DefaultLanguage,
	}
}

// LanguageOrDefault returns the configured language, English when unset.
func (p UIPreference) LanguageOrDefault() string {
	if strings.TrimSpace(p.Language) == "" {
		return DefaultLanguage
	}
	return p.Language
}

var effects = map[string]bool{"none": true, "snow": true, "rain": true, "embers": true, "matrix": true, "breathe": true}

// Patch is a partial update, as produced by the assistant for visual changes.
type Patch struct {
	BackgroundImage      *string  `json:"backgroundImage,omitempty"`
	BackgroundEffect     *string  `json:"backgroundEffect,omitempty"`
	AccentColor          *string  `json:"accentColor,omitempty"`
	BlurIntensity        *float64 `json:"blurIntensity,omitempty"`
	Transparency         *float64 `json:"transparency,omitempty"`
	BackgroundBrightness *float64 `json:"backgroundBrightness,omitempty"`
	ThemeName            *string  `json:"themeName,omitempty"`
	Language             *string  `json:"language,omitempty"`
}

func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// Apply overlays the patch. Out-of-range numbers are clamped and unknown
// effects are ignored.
func (p Patch) Apply(base UIPreference) UIPreference {
	out := base
	if p.BackgroundImage != nil && strings.TrimSpace(*p.BackgroundImage) != "" {
		out.BackgroundImage = *p.BackgroundImage
	}
	if p.BackgroundEffect != nil && effects[*p.BackgroundEffect] {
		out.BackgroundEffect = *p.BackgroundEffect
	}
	if p.AccentColor != nil && *p.AccentColor != "" {
		out.AccentColor = *p.AccentColor
	}
	if p.BlurIntensity != nil {
		out.BlurIntensity = clamp(*p.BlurIntensity, 0, 100)
	}
	if p.Transparency != nil {
		out.Transparency = clamp(*p.Transparency, 0, 1)
	}
	if p.BackgroundBrightness != nil {
		out.BackgroundBrightness = clamp(*p.BackgroundBrightness, 0, 100)
	}
	if p.ThemeName != nil && *p.ThemeName != "" {
		out.ThemeName = *p.ThemeName
	}
	if p.Language != nil && strings.TrimSpace(*p.Language) != "" {
		out.Language = strings.TrimSpace(*p.Language)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

// isBlob reports whether a value must live in the asset cache instead of the remote row.
func isBlob(v string) bool {
	return strings.HasPrefix(v, InlineDataPrefix) || len(v) > MaxRemoteAssetBytes
}
