package dpkg

import "strings"

// Category is a coarse grouping of package sections.
type Category uint16

const (
	CategoryArchiving Category = iota
	CategoryDevelopment
	CategoryNetworking
	CategoryPackaging
	CategorySystem
	CategoryTerminalSupport
	CategoryTextEditors
	CategoryThemes
	CategoryTweaks
	CategoryUtilities
	CategoryOther
)

var categoryNames = map[Category]string{
	CategoryArchiving:       "Archiving",
	CategoryDevelopment:     "Development",
	CategoryNetworking:      "Networking",
	CategoryPackaging:       "Packaging",
	CategorySystem:          "System",
	CategoryTerminalSupport: "Terminal support",
	CategoryTextEditors:     "Text editors",
	CategoryThemes:          "Themes",
	CategoryTweaks:          "Tweaks",
	CategoryUtilities:       "Utilities",
	CategoryOther:           "Other",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return categoryNames[CategoryOther]
}

// CategoryOf maps a Section value to its category. Matching ignores case and
// treats underscores as spaces; "Themes (SpringBoard)" and the like count as themes.
func CategoryOf(section string) Category {
	s := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(section, "_", " ")))
	if strings.HasPrefix(s, "themes") {
		return CategoryThemes
	}
	for c, name := range categoryNames {
		if c != CategoryOther && s == strings.ToLower(name) {
			return c
		}
	}
	return CategoryOther
}
