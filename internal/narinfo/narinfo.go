package narinfo

import (
	"fmt"
	"strconv"
	"strings"
)

// NarInfo is the metadata a binary cache publishes for one store path, parsed
// from the key-value `.narinfo` format.
type NarInfo struct {
	StorePath   string   `json:"store_path"`
	URL         string   `json:"url"`
	Compression string   `json:"compression"`
	FileHash    string   `json:"file_hash"`
	FileSize    int64    `json:"file_size"`
	NarHash     string   `json:"nar_hash"`
	NarSize     int64    `json:"nar_size"`
	Deriver     *string  `json:"deriver"`
	System      *string  `json:"system"`
	References  []string `json:"references"`
	Sig         string   `json:"sig"`
	CA          *string  `json:"ca"`
}

// Parse decodes a narinfo document. Every line is a "Key: value" pair; unknown
// keys are ignored, missing required keys are an error.
func Parse(text string) (*NarInfo, error) {
	fields := make(map[string]string)
	var references []string

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("narinfo line without delimiter: %q", line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "References" {
			if value != "" {
				references = strings.Split(value, " ")
			}
			continue
		}
		fields[key] = value
	}

	info := &NarInfo{References: references}

	required := []struct {
		key string
		dst *string
	}{
		{"StorePath", &info.StorePath},
		{"URL", &info.URL},
		{"Compression", &info.Compression},
		{"FileHash", &info.FileHash},
		{"NarHash", &info.NarHash},
		{"Sig", &info.Sig},
	}
	for _, r := range required {
		value, ok := fields[r.key]
		if !ok {
			return nil, fmt.Errorf("narinfo is missing required field %s", r.key)
		}
		*r.dst = value
	}

	for _, size := range []struct {
		key string
		dst *int64
	}{
		{"FileSize", &info.FileSize},
		{"NarSize", &info.NarSize},
	} {
		value, ok := fields[size.key]
		if !ok {
			return nil, fmt.Errorf("narinfo is missing required field %s", size.key)
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("narinfo field %s is not an integer: %w", size.key, err)
		}
		*size.dst = n
	}

	if v, ok := fields["Deriver"]; ok {
		info.Deriver = &v
	}
	if v, ok := fields["System"]; ok {
		info.System = &v
	}
	if v, ok := fields["CA"]; ok {
		info.CA = &v
	}

	return info, nil
}

// StoreHash extracts the hash component of a store path, the part the cache
// uses to address the narinfo document.
func StoreHash(outputPath string) (string, error) {
	rest, ok := strings.CutPrefix(outputPath, "/nix/store/")
	if !ok {
		return "", fmt.Errorf("malformed store path: %q", outputPath)
	}
	hash, _, ok := strings.Cut(rest, "-")
	if !ok || hash == "" {
		return "", fmt.Errorf("malformed store path: %q", outputPath)
	}
	return hash, nil
}
