package source

import (
	"io"
)

// Static is a Source replaying a fixed sequence of images, such as frames
// decoded from disk or synthesized in tests. Images are cloned on Read, so the
// sequence stays owned by the caller.
type Static struct {
	Images []Image

	next   int
	opened bool
}

func (s *Static) Open() error {
	s.opened = true
	s.next = 0
	return nil
}

func (s *Static) Read() (Image, error) {
	if !s.opened || s.next >= len(s.Images) {
		return Image{}, io.EOF
	}
	i := s.Images[s.next].Clone()
	s.next++
	if i.Seq == 0 {
		i.Seq = uint64(s.next)
	}
	return i, nil
}

func (s *Static) Close() error {
	s.opened = false
	return nil
}
