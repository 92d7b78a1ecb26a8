package catalog

import (
	"bytes"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"gopkg.in/yaml.v3"
)

type xmlDocument struct {
	XMLName xml.Name `xml:"Catalog"`
	document
}

// ReadXML parses an XML catalog. Non-UTF-8 documents are transcoded using
// the encoding named in the XML declaration.
func (l *Loader) ReadXML(r io.Reader) error {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader
	var doc xmlDocument
	if err := dec.Decode(&doc); err != nil {
		return eris.Wrap(err, "catalog: decode xml")
	}
	return l.load(doc.document)
}

// ReadXMLFile parses the XML catalog at path.
func (l *Loader) ReadXMLFile(path string) error {
	data, err := readFile(path)
	if err != nil {
		return err
	}
	return l.ReadXML(bytes.NewReader(data))
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: charset %s", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}

// ReadYAML parses a YAML catalog mirroring the XML schema.
func (l *Loader) ReadYAML(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return eris.Wrap(err, "catalog: read yaml")
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return eris.Wrap(err, "catalog: decode yaml")
	}
	return l.load(doc)
}

// ReadYAMLFile parses the YAML catalog at path.
func (l *Loader) ReadYAMLFile(path string) error {
	data, err := readFile(path)
	if err != nil {
		return err
	}
	return l.ReadYAML(bytes.NewReader(data))
}
