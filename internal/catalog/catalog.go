// Package catalog loads sample and process definitions from flat text, XML
// or YAML files into a registry, and writes the text format back out.
package catalog

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/analysis-cli/internal/cache"
	"github.com/sells-group/analysis-cli/internal/cut"
	"github.com/sells-group/analysis-cli/internal/sample"
	"github.com/sells-group/analysis-cli/internal/scan"
)

// Loader builds registry entries from catalog files. Engine and Cache are
// attached to every sample it creates.
type Loader struct {
	Registry *sample.Registry
	Engine   scan.Engine
	Cache    cache.Cache
}

// sampleDef is the schema shared by the XML and YAML catalog variants.
// Optional numeric fields are pointers so that an absent attribute keeps the
// sample's default instead of forcing zero.
type sampleDef struct {
	Name         string   `xml:"name,attr" yaml:"name"`
	Title        string   `xml:"title,attr" yaml:"title,omitempty"`
	SourceTag    string   `xml:"sourceTag,attr" yaml:"sourceTag,omitempty"`
	Color        int      `xml:"colorIndex,attr" yaml:"colorIndex,omitempty"`
	CrossSection *float64 `xml:"crossSection,attr" yaml:"crossSection,omitempty"`
	KFactor      *float64 `xml:"kFactor,attr" yaml:"kFactor,omitempty"`
	Weight       string   `xml:"weight,attr" yaml:"weight,omitempty"`
	IsData       bool     `xml:"isData,attr" yaml:"isData,omitempty"`
	IsSignal     bool     `xml:"isSignal,attr" yaml:"isSignal,omitempty"`
	Files        []string `xml:"File" yaml:"files"`
	AddCuts      []string `xml:"AddCuts" yaml:"addCuts,omitempty"`
	IgnoreCuts   []string `xml:"IgnoreCuts" yaml:"ignoreCuts,omitempty"`
}

type processDef struct {
	Name      string       `xml:"name,attr" yaml:"name"`
	Title     string       `xml:"title,attr" yaml:"title,omitempty"`
	Color     int          `xml:"colorIndex,attr" yaml:"colorIndex,omitempty"`
	KFactor   *float64     `xml:"kFactor,attr" yaml:"kFactor,omitempty"`
	Children  []string     `xml:"Child" yaml:"children,omitempty"`
	Samples   []sampleDef  `xml:"Sample" yaml:"samples,omitempty"`
	Processes []processDef `xml:"Process" yaml:"processes,omitempty"`
}

type document struct {
	Samples   []sampleDef  `xml:"Sample" yaml:"samples"`
	Processes []processDef `xml:"Process" yaml:"processes"`
}

func (l *Loader) buildSample(def sampleDef) error {
	if def.Name == "" {
		return eris.New("catalog: sample without name")
	}
	s := sample.New(def.Name, l.Engine)
	if def.Title != "" {
		s.SetTitle(def.Title)
	}
	if def.SourceTag != "" {
		s.DefaultSourceTag = def.SourceTag
	}
	s.SetColor(def.Color)
	if def.CrossSection != nil {
		s.SetCrossSection(*def.CrossSection)
	}
	if def.KFactor != nil {
		s.SetKFactor(*def.KFactor)
	}
	s.SetWeightExpression(def.Weight)
	s.SetData(def.IsData)
	s.SetSignal(def.IsSignal)
	s.Inputs = append([]string(nil), def.Files...)
	for _, c := range def.AddCuts {
		s.InjectCut(cut.New(c))
	}
	for _, c := range def.IgnoreCuts {
		s.ExcludeCut(cut.New(c))
	}
	if l.Cache != nil {
		s.SetCache(l.Cache)
	}
	l.Registry.Register(s)
	return nil
}

// buildProcess resolves children against the registry. An unresolvable
// child name drops the whole entry with a warning: a partial group would
// silently misreport merged yields.
func (l *Loader) buildProcess(def processDef) error {
	if def.Name == "" {
		return eris.New("catalog: process without name")
	}
	for _, s := range def.Samples {
		if err := l.buildSample(s); err != nil {
			return err
		}
	}
	for _, nested := range def.Processes {
		if err := l.buildProcess(nested); err != nil {
			return err
		}
	}
	p := sample.NewProcess(def.Name)
	if def.Title != "" {
		p.SetTitle(def.Title)
	}
	p.SetColor(def.Color)
	if def.KFactor != nil {
		p.SetKFactor(*def.KFactor)
	}
	names := append([]string(nil), def.Children...)
	for _, s := range def.Samples {
		names = append(names, s.Name)
	}
	for _, nested := range def.Processes {
		names = append(names, nested.Name)
	}
	for _, name := range names {
		child, ok := l.Registry.Lookup(name)
		if !ok {
			zap.L().Warn("catalog: unresolved child, skipping process",
				zap.String("process", def.Name), zap.String("child", name))
			return nil
		}
		p.Add(child)
	}
	l.Registry.Register(p)
	return nil
}

func (l *Loader) load(doc document) error {
	for _, s := range doc.Samples {
		if err := l.buildSample(s); err != nil {
			return err
		}
	}
	for _, p := range doc.Processes {
		if err := l.buildProcess(p); err != nil {
			return err
		}
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return data, nil
}
