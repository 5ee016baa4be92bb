package detection

// Category names the kind of object a Detection describes.
type Category string

const (
	CategoryPerson       Category = "person"
	CategoryTextFragment Category = "text_fragment"
	CategoryBanner       Category = "banner"
)

// Box is an axis-aligned rectangle in original image pixels.
// A valid box satisfies 0 <= XMin < XMax <= width and 0 <= YMin < YMax <= height.
type Box struct {
	XMin int `json:"x_min" yaml:"x_min"`
	YMin int `json:"y_min" yaml:"y_min"`
	XMax int `json:"x_max" yaml:"x_max"`
	YMax int `json:"y_max" yaml:"y_max"`
}

// Width returns the box width in pixels.
func (b Box) Width() int { return b.XMax - b.XMin }

// Height returns the box height in pixels.
func (b Box) Height() int { return b.YMax - b.YMin }

// Area returns the box area in square pixels.
func (b Box) Area() int { return b.Width() * b.Height() }

// CenterY returns the vertical center of the box.
func (b Box) CenterY() float64 { return float64(b.YMin+b.YMax) / 2 }

// Union returns the smallest box containing both b and o.
func (b Box) Union(o Box) Box {
	return Box{
		XMin: min(b.XMin, o.XMin),
		YMin: min(b.YMin, o.YMin),
		XMax: max(b.XMax, o.XMax),
		YMax: max(b.YMax, o.YMax),
	}
}

// Detection is a single scored box. The category is carried in memory only;
// serialized records name it through the list a detection belongs to.
type Detection struct {
	Category Category `json:"-" yaml:"-"`
	Box      `yaml:",inline"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// ImageSize holds original image dimensions.
type ImageSize struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// InferenceBox is a box in the coordinate space of a resized inference input.
type InferenceBox struct {
	X float64
	Y float64
	W float64
	H float64
}

// Scale holds the factors an image was multiplied by to reach inference space.
type Scale struct {
	X float64
	Y float64
}

// Identity is the scale of a detector that ran on the original pixels.
var Identity = Scale{X: 1, Y: 1}

// InferenceDetection is a raw detector output before remapping.
type InferenceDetection struct {
	Box        InferenceBox
	Confidence float64
}
