// Package splitter provides deterministic segmentation of structured text
// units into bounded retrieval windows with page attribution.
package splitter

import "unicode/utf8"

// DefaultMaxChars is the default maximum window length in characters.
const DefaultMaxChars = 2000

// DefaultMinFragment is the default minimum length for a standalone
// trailing window. Shorter trailing fragments are merged backward into the
// previous window when the result still fits.
const DefaultMinFragment = 200

// Unit is one structured text unit with its source page.
type Unit struct {
	Text string
	Page int
}

// Window is one output chunk window. Index is the ordinal position in the
// output sequence; Page is the page of the last source unit fully contained
// in the window.
type Window struct {
	Text  string
	Page  int
	Index int
}

// Splitter packs ordered text units into windows of bounded length.
// Identical input always yields the identical output sequence, which makes
// re-runs idempotent and chunk sets diffable.
type Splitter struct {
	maxChars    int
	minFragment int
}

// Option configures the splitter.
type Option func(*Splitter)

// WithMaxChars sets the maximum window length in characters.
func WithMaxChars(n int) Option {
	return func(s *Splitter) {
		if n > 0 {
			s.maxChars = n
		}
	}
}

// WithMinFragment sets the minimum standalone length for the trailing
// window.
func WithMinFragment(n int) Option {
	return func(s *Splitter) {
		if n >= 0 {
			s.minFragment = n
		}
	}
}

// New creates a splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		maxChars:    DefaultMaxChars,
		minFragment: DefaultMinFragment,
	}

	for _, opt := range opts {
		opt(s)
	}

	// A fragment threshold above the window size would merge everything.
	if s.minFragment >= s.maxChars {
		s.minFragment = s.maxChars / 4
	}

	return s
}

// MaxChars returns the configured maximum window length.
func (s *Splitter) MaxChars() int {
	return s.maxChars
}

// Split packs units into windows of at most MaxChars characters. Units
// inside a window are joined with a single newline. A unit longer than
// MaxChars is hard-split at character boundaries. Empty units are skipped;
// no window is ever empty.
func (s *Splitter) Split(units []Unit) []Window {
	var windows []Window

	var parts []string
	var curLen, curPage int

	flush := func() {
		if len(parts) == 0 {
			return
		}
		windows = append(windows, Window{Text: join(parts), Page: curPage})
		parts = nil
		curLen = 0
	}

	for _, unit := range units {
		if unit.Text == "" {
			continue
		}

		unitLen := utf8.RuneCountInString(unit.Text)

		if unitLen > s.maxChars {
			flush()
			for _, piece := range hardSplit(unit.Text, s.maxChars) {
				windows = append(windows, Window{Text: piece, Page: unit.Page})
			}
			continue
		}

		// +1 for the joining newline.
		if len(parts) > 0 && curLen+1+unitLen > s.maxChars {
			flush()
		}

		parts = append(parts, unit.Text)
		if len(parts) == 1 {
			curLen = unitLen
		} else {
			curLen += 1 + unitLen
		}
		curPage = unit.Page
	}
	flush()

	windows = s.mergeTrailingFragment(windows)

	for i := range windows {
		windows[i].Index = i
	}
	return windows
}

// mergeTrailingFragment folds a sub-minimum trailing window into the
// previous one when the merged window still fits within MaxChars. The page
// of the merged window is the trailing fragment's page, keeping pages
// non-decreasing with index.
func (s *Splitter) mergeTrailingFragment(windows []Window) []Window {
	if len(windows) < 2 {
		return windows
	}

	last := windows[len(windows)-1]
	if utf8.RuneCountInString(last.Text) >= s.minFragment {
		return windows
	}

	prev := windows[len(windows)-2]
	merged := prev.Text + "\n" + last.Text
	if utf8.RuneCountInString(merged) > s.maxChars {
		return windows
	}

	windows[len(windows)-2] = Window{Text: merged, Page: last.Page}
	return windows[:len(windows)-1]
}

// hardSplit cuts text into pieces of at most maxChars characters.
func hardSplit(text string, maxChars int) []string {
	runes := []rune(text)
	pieces := make([]string, 0, (len(runes)/maxChars)+1)
	for start := 0; start < len(runes); start += maxChars {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, string(runes[start:end]))
	}
	return pieces
}

// join concatenates parts with single newlines.
func join(parts []string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	n := 0
	for _, p := range parts {
		n += len(p) + 1
	}
	buf := make([]byte, 0, n)
	for i, p := range parts {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, p...)
	}
	return string(buf)
}
