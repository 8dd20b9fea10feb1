package canvas

// MarkKind names a drawing primitive
type MarkKind string

const (
	MarkLine    MarkKind = "line"
	MarkScatter MarkKind = "scatter"
	MarkBar     MarkKind = "bar"
	MarkBarH    MarkKind = "barh"
	MarkHist    MarkKind = "hist"
	MarkBox     MarkKind = "box"
	MarkHeatmap MarkKind = "heatmap"
)

// DefaultBins is the histogram bin count used when a call does not specify one
const DefaultBins = 10

// Mark is one drawing operation recorded on an Axes
type Mark struct {
	Kind  MarkKind `json:"kind"`
	Label string   `json:"label,omitempty"`

	// X and Y hold point coordinates for line and scatter marks
	X []float64 `json:"x,omitempty"`
	Y []float64 `json:"y,omitempty"`

	// Categories and Values hold bar charts; Values alone holds histogram samples
	Categories []string  `json:"categories,omitempty"`
	Values     []float64 `json:"values,omitempty"`
	Bins       int       `json:"bins,omitempty"`

	// Groups holds one sample per box, labelled by Categories
	Groups [][]float64 `json:"groups,omitempty"`

	// Matrix holds heatmap cells row by row
	Matrix    [][]float64 `json:"matrix,omitempty"`
	RowLabels []string    `json:"row_labels,omitempty"`
	ColLabels []string    `json:"col_labels,omitempty"`
}

// Range is an axis limit
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Axes is the single drawing area of a Figure
type Axes struct {
	Title  string `json:"title,omitempty"`
	XLabel string `json:"xlabel,omitempty"`
	YLabel string `json:"ylabel,omitempty"`
	XLim   *Range `json:"xlim,omitempty"`
	YLim   *Range `json:"ylim,omitempty"`
	Marks  []Mark `json:"marks,omitempty"`
}

// Add records a mark
func (a *Axes) Add(m Mark) {
	a.Marks = append(a.Marks, m)
}

// HasData reports whether anything drawable was recorded. Titles and
// limits alone do not count.
func (a *Axes) HasData() bool {
	return len(a.Marks) > 0
}

// Figure is the canvas created for one execution
type Figure struct {
	// Width and Height are in inches
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Title  string  `json:"title,omitempty"`
	Axes   *Axes   `json:"axes"`
}

// New creates an empty figure of the given size in inches
func New(width, height float64) *Figure {
	return &Figure{Width: width, Height: height, Axes: &Axes{}}
}

// HasData reports whether the figure's axes received drawable content
func (f *Figure) HasData() bool {
	return f != nil && f.Axes != nil && f.Axes.HasData()
}
