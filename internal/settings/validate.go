package settings

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var validCodecs = map[string]bool{
	"libx264":    true,
	"libx265":    true,
	"h264_nvenc": true,
	"hevc_nvenc": true,
	"h264_vaapi": true,
	"hevc_vaapi": true,
}

var validSpeedPresets = map[string]bool{
	// libx264/libx265
	"ultrafast": true, "superfast": true, "veryfast": true, "faster": true,
	"fast": true, "medium": true, "slow": true, "slower": true, "veryslow": true,
	// nvenc
	"p1": true, "p2": true, "p3": true, "p4": true, "p5": true, "p6": true, "p7": true,
}

var validProfiles = map[string]bool{
	"baseline": true, "main": true, "high": true, "main10": true,
}

var validLevels = map[string]bool{
	"3.0": true, "3.1": true, "3.2": true, "4.0": true, "4.1": true,
	"4.2": true, "5.0": true, "5.1": true, "5.2": true,
}

// validScales lists the allowed target heights; 0 disables scaling.
var validScales = map[int]bool{
	0: true, 144: true, 240: true, 360: true, 480: true,
	720: true, 1080: true, 1440: true, 2160: true,
}

var validWatermarkPositions = map[string]bool{
	"top-left": true, "top-right": true, "bottom-left": true,
	"bottom-right": true, "center": true,
}

var validUploadModes = map[string]bool{
	"Document": true, "File": true,
}

var audioBitratePattern = regexp.MustCompile(`^[0-9]{2,4}k$`)

// validateValue coerces and range-checks a single settings assignment.
// It returns the coerced value to store.
func validateValue(category, key string, value any) (any, error) {
	switch category {
	case CategoryCompression:
		switch key {
		case "v_codec":
			return requireChoice(key, value, validCodecs)
		case "v_preset":
			return requireChoice(key, value, validSpeedPresets)
		case "v_profile":
			return requireChoice(key, value, validProfiles)
		case "v_level":
			return requireChoice(key, value, validLevels)
		case "v_qp":
			return requireIntRange(key, value, 0, 51)
		case "v_scale":
			n, ok := toInt(value)
			if !ok {
				return nil, fmt.Errorf("%s must be a number", key)
			}
			// -1 is accepted as a legacy alias for "no scaling"
			if n == -1 {
				n = 0
			}
			if !validScales[n] {
				return nil, fmt.Errorf("%s must be one of 0, 144, 240, 360, 480, 720, 1080, 1440, 2160", key)
			}
			return n, nil
		case "v_fps":
			return requireIntRange(key, value, 0, 120)
		case "a_bitrate":
			s, ok := toString(value)
			if !ok || !audioBitratePattern.MatchString(s) {
				return nil, fmt.Errorf("%s must look like 128k", key)
			}
			return s, nil
		case "enable_hardware_acceleration":
			return requireBool(key, value)
		}

	case CategoryOutput:
		switch key {
		case "filename_template":
			return requireStringLen(key, value, 1, 100)
		case "auto_delete_original":
			return requireBool(key, value)
		case "default_upload_mode":
			return requireChoice(key, value, validUploadModes)
		case "max_file_size":
			return requireIntRange(key, value, 1, 8000)
		case "max_queue_size":
			return requireIntRange(key, value, 1, 50)
		}

	case CategoryPreview:
		switch key {
		case "enable_screenshots", "enable_video_preview":
			return requireBool(key, value)
		case "screenshot_count":
			return requireIntRange(key, value, 1, 20)
		case "preview_duration":
			return requireIntRange(key, value, 5, 60)
		case "preview_quality":
			return requireIntRange(key, value, 18, 35)
		}

	case CategoryAdvanced:
		switch key {
		case "watermark_enabled":
			return requireBool(key, value)
		case "watermark_text":
			return requireStringLen(key, value, 1, 50)
		case "watermark_position":
			return requireChoice(key, value, validWatermarkPositions)
		case "upload_connections":
			return requireIntRange(key, value, 1, 10)
		case "progress_update_interval":
			return requireIntRange(key, value, 1, 30)
		}

	case CategoryThumbnail:
		switch key {
		case "custom_thumbnail_url":
			s, ok := toString(value)
			if !ok {
				return nil, fmt.Errorf("%s must be a string", key)
			}
			if s != "" && !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
				return nil, fmt.Errorf("%s must be an http(s) URL", key)
			}
			return s, nil
		case "auto_generate_thumbnail":
			return requireBool(key, value)
		case "thumbnail_timestamp_percent":
			return requireIntRange(key, value, 1, 99)
		}
	}

	return nil, fmt.Errorf("unknown setting %s.%s", category, key)
}

func requireIntRange(key string, value any, min, max int) (any, error) {
	n, ok := toInt(value)
	if !ok {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	if n < min || n > max {
		return nil, fmt.Errorf("%s must be between %d and %d", key, min, max)
	}
	return n, nil
}

func requireBool(key string, value any) (any, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("%s must be true or false", key)
	}
	return b, nil
}

func requireStringLen(key string, value any, min, max int) (any, error) {
	s, ok := toString(value)
	if !ok {
		return nil, fmt.Errorf("%s must be a string", key)
	}
	if len(s) < min || len(s) > max {
		return nil, fmt.Errorf("%s must be between %d and %d characters", key, min, max)
	}
	return s, nil
}

func requireChoice(key string, value any, choices map[string]bool) (any, error) {
	s, ok := toString(value)
	if !ok || !choices[s] {
		names := make([]string, 0, len(choices))
		for name := range choices {
			names = append(names, name)
		}
		slices.Sort(names)
		return nil, fmt.Errorf("%s must be one of: %s", key, strings.Join(names, ", "))
	}
	return s, nil
}

// toInt accepts the integer shapes JSON decoding and callers produce.
func toInt(value any) (int, bool) {
	switch n := value.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func toString(value any) (string, bool) {
	s, ok := value.(string)
	return s, ok
}

// assignInt stores an already-validated value into an int field.
func assignInt(dst *int, key string, value any) error {
	n, ok := toInt(value)
	if !ok {
		return fmt.Errorf("%s must be a number", key)
	}
	*dst = n
	return nil
}

func assignBool(dst *bool, key string, value any) error {
	b, ok := value.(bool)
	if !ok {
		return fmt.Errorf("%s must be true or false", key)
	}
	*dst = b
	return nil
}

func assignString(dst *string, key string, value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("%s must be a string", key)
	}
	*dst = s
	return nil
}
