package core

// Style holds presentational attributes. Empty fields fall back to the
// render defaults in Resolve.
type Style struct {
	Color           string `json:"color,omitempty"`
	FontSize        string `json:"fontSize,omitempty"`
	FontWeight      string `json:"fontWeight,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	Padding         string `json:"padding,omitempty"`
	BorderRadius    string `json:"borderRadius,omitempty"`
}

var defaultStyle = Style{
	Color:           "white",
	FontSize:        "16px",
	FontWeight:      "normal",
	BackgroundColor: "transparent",
	Padding:         "0",
	BorderRadius:    "0",
}

// Merge returns s with every non-empty attribute of other applied on top.
func (s Style) Merge(other Style) Style {
	if other.Color != "" {
		s.Color = other.Color
	}
	if other.FontSize != "" {
		s.FontSize = other.FontSize
	}
	if other.FontWeight != "" {
		s.FontWeight = other.FontWeight
	}
	if other.BackgroundColor != "" {
		s.BackgroundColor = other.BackgroundColor
	}
	if other.Padding != "" {
		s.Padding = other.Padding
	}
	if other.BorderRadius != "" {
		s.BorderRadius = other.BorderRadius
	}
	return s
}

// Resolve fills absent attributes with their render defaults.
func (s Style) Resolve() Style {
	return defaultStyle.Merge(s)
}
