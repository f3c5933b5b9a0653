package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/chunkwalk/internal/formats/layout"
	"github.com/pelletier/go-toml/v2"
)

// LayoutFile is the on-disk set of declarative layouts.
type LayoutFile struct {
	Layouts []LayoutConfig `toml:"layout"`
}

type LayoutConfig struct {
	Name                 string   `toml:"name"`
	TagWidth             int      `toml:"tag_width"`
	LengthWidth          int      `toml:"length_width"`
	ByteOrder            string   `toml:"byte_order"`
	LengthFirst          bool     `toml:"length_first"`
	LengthIncludesHeader bool     `toml:"length_includes_header"`
	Align                int      `toml:"align"`
	Groups               []string `toml:"groups"`
	FormWidth            int      `toml:"form_width"`
	Known                []string `toml:"known"`
}

// LoadLayouts reads and validates a layouts file keyed by layout name.
func LoadLayouts(path string) (map[string]layout.Layout, error) {
	var file LayoutFile
	if err := loadToml(path, &file); err != nil {
		return nil, err
	}
	if len(file.Layouts) == 0 {
		return nil, fmt.Errorf("layouts config (%s) defines no [[layout]] tables", path)
	}
	out := make(map[string]layout.Layout, len(file.Layouts))
	for i, lc := range file.Layouts {
		l, err := lc.Layout()
		if err != nil {
			return nil, fmt.Errorf("layout[%d] invalid: %w", i, err)
		}
		if _, dup := out[l.Name]; dup {
			return nil, fmt.Errorf("layout[%d] invalid: duplicate name %q", i, l.Name)
		}
		out[l.Name] = l
	}
	return out, nil
}

// Layout converts the file form into a validated layout.
func (c LayoutConfig) Layout() (layout.Layout, error) {
	order, err := layout.ParseOrder(c.ByteOrder)
	if err != nil {
		return layout.Layout{}, err
	}
	l := layout.Layout{
		Name:                 strings.TrimSpace(c.Name),
		TagWidth:             c.TagWidth,
		LengthWidth:          c.LengthWidth,
		Order:                order,
		LengthFirst:          c.LengthFirst,
		LengthIncludesHeader: c.LengthIncludesHeader,
		Align:                c.Align,
		FormWidth:            c.FormWidth,
	}
	for _, raw := range c.Groups {
		tag, err := layout.ParseTag(raw)
		if err != nil {
			return layout.Layout{}, err
		}
		l.Groups = append(l.Groups, tag)
	}
	for _, raw := range c.Known {
		tag, err := layout.ParseTag(raw)
		if err != nil {
			return layout.Layout{}, err
		}
		l.Known = append(l.Known, tag)
	}
	if err := l.Validate(); err != nil {
		return layout.Layout{}, err
	}
	return l, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}
