package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "chunkctl":
		return chunkctlTemplate, nil
	case "layouts":
		return layoutsTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const chunkctlTemplate = `format = "iff"
layouts_path = "layouts.toml"
strict = false
max_depth = 64
export = "json"
export_path = ""
metrics_path = ""
max_payload = 8388608
log_level = "info"
log_no_color = false
log_file = ""
`

const layoutsTemplate = `# Declarative TLV layouts. Select one with -format <name>.

[[layout]]
name = "iff-generic"
tag_width = 4
length_width = 4
byte_order = "big"
align = 2
groups = ["FORM", "LIST", "CAT "]
form_width = 4
# known = ["COMM", "SSND"] rejects any other leaf tag

[[layout]]
name = "riff-generic"
tag_width = 4
length_width = 4
byte_order = "little"
align = 2
groups = ["RIFF", "LIST"]
form_width = 4

[[layout]]
name = "edge-tlv"
tag_width = 3
length_width = 4
byte_order = "big"
`
