package encoder

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/pkg/errors"
)

// Recorder keeps a fixed number of (left, right) sample pairs for offline
// threshold tuning.
type Recorder struct {
	rows [][2]Sample
	size int
}

func NewRecorder(size int) *Recorder {
	return &Recorder{
		rows: make([][2]Sample, 0, size),
		size: size,
	}
}

// Record appends a row; it is a no-op once the recorder is full.
func (r *Recorder) Record(left, right Sample) {
	if r.Full() {
		return
	}
	r.rows = append(r.rows, [2]Sample{left, right})
}

func (r *Recorder) Full() bool {
	return len(r.rows) >= r.size
}

func (r *Recorder) Len() int {
	return len(r.rows)
}

// WriteTable writes one aligned row per iteration:
// tLeft rawLeft edgeLeft tRight rawRight edgeRight.
func (r *Recorder) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	for _, row := range r.rows {
		for i, s := range row {
			sep := "\t"
			if i == len(row)-1 {
				sep = "\n"
			}
			_, err := fmt.Fprintf(tw, "%s\t%d\t%d%s", strconv.FormatFloat(s.T, 'f', 6, 64), s.Raw, s.Edge, sep)
			if err != nil {
				return err
			}
		}
	}
	return tw.Flush()
}

func (r *Recorder) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create sample file")
	}
	bw := bufio.NewWriter(f)
	if err := r.WriteTable(bw); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "failed to write samples")
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "failed to write samples")
	}
	return f.Close()
}
