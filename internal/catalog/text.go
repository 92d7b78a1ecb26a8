package catalog

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/analysis-cli/internal/sample"
)

// Text catalog format: one definition per line, fields separated by ";".
// The last field is a comma-separated list.
//
//	sample:  name; title; sourceTag; colorIndex; crossSection; kFactor; file1, file2, ...
//	process: name; title; colorIndex; kFactor; child1, child2, ...
//
// Lines starting with "#" or "/" are comments. Absent trailing fields keep
// their defaults, so a bare name is a valid (if useless) sample line.

// ReadSamplesText parses a text sample catalog.
func (l *Loader) ReadSamplesText(r io.Reader) error {
	return eachLine(r, func(lineNo int, fields []string) error {
		color, err := intField(fields, 3, 0)
		if err != nil {
			return eris.Wrapf(err, "catalog: line %d: colorIndex", lineNo)
		}
		xsec, err := floatField(fields, 4, 1)
		if err != nil {
			return eris.Wrapf(err, "catalog: line %d: crossSection", lineNo)
		}
		kf, err := floatField(fields, 5, 1)
		if err != nil {
			return eris.Wrapf(err, "catalog: line %d: kFactor", lineNo)
		}
		return l.buildSample(sampleDef{
			Name:         field(fields, 0),
			Title:        field(fields, 1),
			SourceTag:    field(fields, 2),
			Color:        color,
			CrossSection: &xsec,
			KFactor:      &kf,
			Files:        listField(fields, 6),
		})
	})
}

// ReadProcessesText parses a text process catalog. Children must already be
// registered.
func (l *Loader) ReadProcessesText(r io.Reader) error {
	return eachLine(r, func(lineNo int, fields []string) error {
		color, err := intField(fields, 2, 0)
		if err != nil {
			return eris.Wrapf(err, "catalog: line %d: colorIndex", lineNo)
		}
		kf, err := floatField(fields, 3, 1)
		if err != nil {
			return eris.Wrapf(err, "catalog: line %d: kFactor", lineNo)
		}
		return l.buildProcess(processDef{
			Name:     field(fields, 0),
			Title:    field(fields, 1),
			Color:    color,
			KFactor:  &kf,
			Children: listField(fields, 4),
		})
	})
}

// field returns the field at index i, empty when the line is short.
func field(fields []string, i int) string {
	if i >= len(fields) {
		return ""
	}
	return fields[i]
}

func intField(fields []string, i, def int) (int, error) {
	s := field(fields, i)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func floatField(fields []string, i int, def float64) (float64, error) {
	s := field(fields, i)
	if s == "" {
		return def, nil
	}
	return strconv.ParseFloat(s, 64)
}

// listField splits the comma-separated list in the field at index i.
func listField(fields []string, i int) []string {
	var out []string
	for _, part := range strings.Split(field(fields, i), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ReadSamplesTextFile parses the text sample catalog at path.
func (l *Loader) ReadSamplesTextFile(path string) error {
	data, err := readFile(path)
	if err != nil {
		return err
	}
	return l.ReadSamplesText(bytes.NewReader(data))
}

// ReadProcessesTextFile parses the text process catalog at path.
func (l *Loader) ReadProcessesTextFile(path string) error {
	data, err := readFile(path)
	if err != nil {
		return err
	}
	return l.ReadProcessesText(bytes.NewReader(data))
}

func eachLine(r io.Reader, fn func(lineNo int, fields []string) error) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "/") {
			continue
		}
		fields := strings.Split(line, ";")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if err := fn(lineNo, fields); err != nil {
			return err
		}
	}
	return eris.Wrap(scanner.Err(), "catalog: read text")
}

// WriteSamples writes every registered leaf sample in the text format.
func WriteSamples(w io.Writer, reg *sample.Registry) error {
	for _, name := range reg.Names() {
		q, _ := reg.Lookup(name)
		s, ok := q.(*sample.Sample)
		if !ok {
			continue
		}
		line := strings.Join([]string{
			s.Name(),
			s.Title(),
			s.DefaultSourceTag,
			strconv.Itoa(s.Color()),
			formatFloat(s.CrossSection()),
			formatFloat(s.KFactor()),
			strings.Join(s.Inputs, ", "),
		}, "; ")
		if _, err := fmt.Fprintln(w, line); err != nil {
			return eris.Wrap(err, "catalog: write samples")
		}
	}
	return nil
}

// WriteProcesses writes every registered process in the text format.
func WriteProcesses(w io.Writer, reg *sample.Registry) error {
	for _, name := range reg.Names() {
		q, _ := reg.Lookup(name)
		p, ok := q.(*sample.Process)
		if !ok {
			continue
		}
		var children []string
		for _, child := range p.Children() {
			children = append(children, child.Name())
		}
		fields := []string{
			p.Name(),
			p.Title(),
			strconv.Itoa(p.Color()),
			formatFloat(p.KFactor()),
			strings.Join(children, ", "),
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, "; ")); err != nil {
			return eris.Wrap(err, "catalog: write processes")
		}
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
