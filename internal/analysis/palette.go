package analysis

// namedColor is a reference point in the basic color palette.
type namedColor struct {
	Name    string
	R, G, B int
}

// basicPalette is checked in order; the first entry wins on equal distance.
var basicPalette = []namedColor{
	{"red", 220, 50, 50},
	{"orange", 240, 150, 60},
	{"yellow", 240, 220, 70},
	{"green", 80, 170, 90},
	{"cyan", 80, 200, 200},
	{"blue", 70, 110, 230},
	{"purple", 150, 80, 190},
	{"pink", 230, 120, 170},
	{"brown", 150, 110, 80},
	{"black", 20, 20, 20},
	{"white", 240, 240, 240},
	{"gray", 128, 128, 128},
}

// NearestColorName maps an RGB triple to the closest basic palette name by
// squared euclidean distance.
func NearestColorName(r, g, b int) string {
	best := basicPalette[0].Name
	bestDist := -1
	for _, c := range basicPalette {
		dr, dg, db := r-c.R, g-c.G, b-c.B
		d := dr*dr + dg*dg + db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = c.Name, d
		}
	}
	return best
}

// meanColorName classifies average channel intensities. Extremes are checked
// first, then the dominant channel.
func meanColorName(r, g, b float64) string {
	switch {
	case r > 200 && g > 200 && b > 200:
		return "white"
	case r < 50 && g < 50 && b < 50:
		return "black"
	case r > g && r > b:
		if r-g > 50 {
			return "red"
		}
		if g > b {
			return "orange"
		}
		return "purple"
	case g > r && g > b:
		return "green"
	case b > r && b > g:
		return "blue"
	default:
		return "gray"
	}
}
