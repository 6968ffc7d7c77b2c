package data

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CSV is the name of the file-backed dataset. Its path and label column come
// from Options.
const CSV = "csv"

// ErrUnsupportedDataset is returned by Load for unknown dataset names.
var ErrUnsupportedDataset = errors.New("unsupported dataset")

// Options configure file-backed datasets.
type Options struct {
	Path        string
	LabelColumn string
}

// Supported lists the dataset names accepted by Load.
func Supported() []string { return []string{Iris, CSV} }

// Load returns the validated dataset registered under name.
func Load(name string, opts Options) (*Dataset, error) {
	var (
		ds  *Dataset
		err error
	)
	switch name {
	case Iris:
		ds, err = LoadIris()
	case CSV:
		ds, err = LoadCSV(opts.Path, opts.LabelColumn)
	default:
		return nil, errors.Wrapf(ErrUnsupportedDataset, "dataset %q (supported: %s)", name, strings.Join(Supported(), ", "))
	}
	if err != nil {
		return nil, err
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// LoadCSV reads a CSV file with a header row. Every column except
// labelColumn must hold real numbers.
func LoadCSV(path, labelColumn string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening dataset %s", path)
	}
	defer f.Close()

	ds, err := ReadCSV(f, labelColumn)
	if err != nil {
		return nil, errors.Wrapf(err, "reading dataset %s", path)
	}
	return ds, nil
}

// ReadCSV decodes a headed CSV stream into a Dataset. Labels that all parse as
// integers are used as-is; otherwise they are encoded in sorted name order.
func ReadCSV(r io.Reader, labelColumn string) (*Dataset, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.ReuseRecord = true

	rec, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	header := append([]string(nil), rec...)
	labelCol := -1
	ds := &Dataset{Name: CSV}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == labelColumn {
			labelCol = i
			continue
		}
		ds.FeatureNames = append(ds.FeatureNames, h)
	}
	if labelCol < 0 {
		return nil, errors.Errorf("label column %q not found", labelColumn)
	}

	var labels []string
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		x := make([]float64, 0, len(rec)-1)
		for i, s := range rec {
			s = strings.TrimSpace(s)
			if i == labelCol {
				labels = append(labels, s)
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d column %q", line, header[i])
			}
			x = append(x, v)
		}
		ds.X = append(ds.X, x)
	}

	ds.Y, ds.ClassNames = encodeLabels(labels)
	return ds, nil
}

// encodeLabels maps raw label strings to integers.
func encodeLabels(raw []string) ([]int, map[int]string) {
	out := make([]int, len(raw))
	numeric := true
	for i, s := range raw {
		v, err := strconv.Atoi(s)
		if err != nil {
			numeric = false
			break
		}
		out[i] = v
	}
	if numeric {
		return out, nil
	}

	var names []string
	seen := make(map[string]bool)
	for _, s := range raw {
		if !seen[s] {
			seen[s] = true
			names = append(names, s)
		}
	}
	sort.Strings(names)
	ids := make(map[string]int, len(names))
	classNames := make(map[int]string, len(names))
	for i, s := range names {
		ids[s] = i
		classNames[i] = s
	}
	for i, s := range raw {
		out[i] = ids[s]
	}
	return out, classNames
}
