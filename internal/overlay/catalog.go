package overlay

// Group is a palette category of overlay types, as shown by the drawing
// toolbar.
type Group struct {
	Name  string   `json:"name"`
	Types []string `json:"types"`
}

// Groups lists the overlay types the drawing palette knows about, grouped
// by category. The list is informational: creation requests are forwarded
// to the engine whether or not the name appears here.
var Groups = []Group{
	{Name: "lines", Types: []string{
		"horizontalStraightLine", "horizontalRayLine", "horizontalSegment",
		"verticalStraightLine", "verticalRayLine", "verticalSegment",
		"straightLine", "rayLine", "segment",
		"priceLine", "priceChannelLine", "parallelStraightLine",
	}},
	{Name: "shapes", Types: []string{
		"circle", "rect", "triangle", "parallelogram",
	}},
	{Name: "fibonacci", Types: []string{
		"fibonacciLine", "fibonacciSegment", "fibonacciCircle",
		"fibonacciSpiral", "fibonacciSpeedResistanceFan",
		"fibonacciExtension", "gannBox",
	}},
	{Name: "waves", Types: []string{
		"xabcd", "abcd", "threeWaves", "fiveWaves", "eightWaves", "anyWaves",
	}},
	{Name: "annotations", Types: []string{
		"simpleAnnotation", "simpleTag",
	}},
}
