package dispatch

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"go.trai.ch/zerr"
)

// SiteReport describes one site in a Report.
type SiteReport struct {
	ID        uint64 `cbor:"1,keyasint"`
	Kind      string `cbor:"2,keyasint"`
	Name      string `cbor:"3,keyasint"`
	Location  string `cbor:"4,keyasint,omitempty"`
	State     string `cbor:"5,keyasint"`
	Hits      uint64 `cbor:"6,keyasint"`
	Misses    uint64 `cbor:"7,keyasint"`
	Clears    uint64 `cbor:"8,keyasint"`
	MaxShapes int    `cbor:"9,keyasint"`
}

// Report is a diagnostic snapshot of a linker's sites.
type Report struct {
	Stats ICStats      `cbor:"1,keyasint"`
	Sites []SiteReport `cbor:"2,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dispatch: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Report snapshots the linker's statistics and per-site state.
func (l *Linker) Report() *Report {
	sites := l.Sites()
	r := &Report{
		Stats: CollectICStats(sites),
		Sites: make([]SiteReport, 0, len(sites)),
	}
	for _, s := range sites {
		loc := s.Location()
		if loc == "-" {
			loc = ""
		}
		r.Sites = append(r.Sites, SiteReport{
			ID:        s.ID(),
			Kind:      s.Kind().String(),
			Name:      s.Name(),
			Location:  loc,
			State:     s.State().String(),
			Hits:      s.Hits(),
			Misses:    s.Misses(),
			Clears:    s.Tracker().Clears(),
			MaxShapes: s.Tracker().MaxShapes(),
		})
	}
	return r
}

// MarshalReport serializes a Report to canonical CBOR.
func MarshalReport(r *Report) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalReport deserializes a Report from CBOR bytes.
func UnmarshalReport(data []byte) (*Report, error) {
	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, zerr.Wrap(err, "unmarshal report")
	}
	return &r, nil
}
