package export

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geolote/internal/model"
)

// CircuitHeader is the first line of a Circuit route import file.
const CircuitHeader = "Geo_Latitude,Observacoes"

var plotPair = regexp.MustCompile(`,\s*([0-9]+)-([0-9]+)`)

// Stop is one Circuit stop: every row sharing a coordinate pair collapses
// into it.
type Stop struct {
	Lat       string
	Lng       string
	Quadra    string
	Lote      string
	Sequences []int
}

// Observation renders the stop note, e.g. "1, 4 - Quadra:5 - Lote:7".
func (s Stop) Observation() string {
	seqs := make([]string, len(s.Sequences))
	for i, n := range s.Sequences {
		seqs[i] = strconv.Itoa(n)
	}
	return strings.Join(seqs, ", ") + " - Quadra:" + s.Quadra + " - Lote:" + s.Lote
}

// Stops groups located rows by their exact coordinate text, in first-seen
// order. Sequence numbers are 1-based row positions. Quadra and lote come
// from the first row of each group.
func Stops(results []model.MatchResult) []Stop {
	var stops []Stop
	byKey := make(map[string]int)
	for i, res := range results {
		if !res.Found() {
			continue
		}
		lat, lng := res.Lat.String(), res.Lng.String()
		key := lat + "|" + lng
		if at, ok := byKey[key]; ok {
			stops[at].Sequences = append(stops[at].Sequences, i+1)
			continue
		}

		st := Stop{Lat: lat, Lng: lng, Sequences: []int{i + 1}}
		if m := plotPair.FindStringSubmatch(res.Normalized); m != nil {
			st.Quadra, st.Lote = m[1], m[2]
		}
		byKey[key] = len(stops)
		stops = append(stops, st)
	}
	return stops
}

// WriteCircuit writes the Circuit import file. The coordinate pair is
// emitted as "lat, lng" followed by the quoted observation, which is the
// layout Circuit's importer reads.
func WriteCircuit(w io.Writer, results []model.MatchResult) error {
	stops := Stops(results)
	if len(stops) == 0 {
		return ErrNothingToExport
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(CircuitHeader + "\n") //nolint:errcheck
	for _, s := range stops {
		bw.WriteString(s.Lat + ", " + s.Lng + `,"` + s.Observation() + "\"\n") //nolint:errcheck
	}
	if err := bw.Flush(); err != nil {
		return eris.Wrap(err, "export: write circuit csv")
	}
	return nil
}
