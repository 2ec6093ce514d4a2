package knowledge

// Splitter cuts text into fixed-size windows with overlap so embedding input
// stays bounded while adjacent windows share context.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

// NewSplitter returns a splitter with the standard window geometry.
func NewSplitter() *Splitter {
	return &Splitter{ChunkSize: 1000, Overlap: 200}
}

// Split returns the overlapping windows of text. Short inputs yield one window.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	size := s.ChunkSize
	if size <= 0 {
		size = 1000
	}
	overlap := s.Overlap
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	step := size - overlap
	var windows []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			windows = append(windows, string(runes[start:]))
			break
		}
		windows = append(windows, string(runes[start:end]))
	}
	return windows
}
