package catalog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/analysis-cli/internal/cut"
	"github.com/sells-group/analysis-cli/internal/sample"
	"github.com/sells-group/analysis-cli/internal/scan"
)

func newLoader() *Loader {
	return &Loader{
		Registry: sample.NewRegistry(),
		Engine:   scan.NewSQLite(false),
	}
}

const sampleCatalog = `
# background samples
bkg1; Background 1; nominal; 4; 5.0; 1.1; /data/bkg1_*.db
bkg2; Background 2; nominal; 6; 2.5; 1; /data/bkg2_a.db, /data/bkg2_b.db
// real data
data; Data; nominal; 1; 1; 1; /data/data_*.db
`

func TestReadSamplesText(t *testing.T) {
	l := newLoader()
	require.NoError(t, l.ReadSamplesText(strings.NewReader(sampleCatalog)))
	assert.Equal(t, []string{"bkg1", "bkg2", "data"}, l.Registry.Names())

	q, ok := l.Registry.Lookup("bkg1")
	require.True(t, ok)
	s := q.(*sample.Sample)
	assert.Equal(t, "Background 1", s.Title())
	assert.Equal(t, 4, s.Color())
	assert.Equal(t, 5.0, s.CrossSection())
	assert.Equal(t, 1.1, s.KFactor())
	assert.Equal(t, []string{"/data/bkg1_*.db"}, s.Inputs)

	// The file list is one comma-separated field, not extra semicolons.
	q, _ = l.Registry.Lookup("bkg2")
	assert.Equal(t, []string{"/data/bkg2_a.db", "/data/bkg2_b.db"}, q.(*sample.Sample).Inputs)
}

func TestReadSamplesText_ShortLineDefaults(t *testing.T) {
	l := newLoader()
	require.NoError(t, l.ReadSamplesText(strings.NewReader("minimal\n")))

	q, ok := l.Registry.Lookup("minimal")
	require.True(t, ok)
	s := q.(*sample.Sample)
	assert.Equal(t, "minimal", s.Title())
	assert.Equal(t, 0, s.Color())
	assert.Equal(t, 1.0, s.CrossSection())
	assert.Equal(t, 1.0, s.KFactor())
	assert.Empty(t, s.Inputs)
}

func TestReadSamplesText_BadLine(t *testing.T) {
	l := newLoader()
	err := l.ReadSamplesText(strings.NewReader("bkg1; Title; nominal; notanint; 1; 1; f.db\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colorIndex")
}

func TestReadProcessesText(t *testing.T) {
	l := newLoader()
	require.NoError(t, l.ReadSamplesText(strings.NewReader(sampleCatalog)))
	require.NoError(t, l.ReadProcessesText(strings.NewReader(`
allbkg; All backgrounds; 2; 1.5; bkg1, bkg2
everything; Everything; 1; 1; allbkg, data
`)))

	q, ok := l.Registry.Lookup("allbkg")
	require.True(t, ok)
	p := q.(*sample.Process)
	assert.Equal(t, 1.5, p.KFactor())
	assert.Len(t, p.Children(), 2)

	q, ok = l.Registry.Lookup("everything")
	require.True(t, ok)
	assert.Len(t, q.Leaves(), 3)
}

func TestReadProcessesText_UnresolvedChildSkipsEntry(t *testing.T) {
	l := newLoader()
	require.NoError(t, l.ReadProcessesText(strings.NewReader("ghosts; G; 1; 1; nosuch\n")))
	_, ok := l.Registry.Lookup("ghosts")
	assert.False(t, ok)
}

func TestTextRoundTrip(t *testing.T) {
	l := newLoader()
	require.NoError(t, l.ReadSamplesText(strings.NewReader(sampleCatalog)))
	require.NoError(t, l.ReadProcessesText(strings.NewReader("allbkg; All; 2; 1.5; bkg1, bkg2\n")))

	var samples, processes bytes.Buffer
	require.NoError(t, WriteSamples(&samples, l.Registry))
	require.NoError(t, WriteProcesses(&processes, l.Registry))

	reread := newLoader()
	require.NoError(t, reread.ReadSamplesText(&samples))
	require.NoError(t, reread.ReadProcessesText(&processes))

	assert.Equal(t, l.Registry.Names(), reread.Registry.Names())
	q, _ := reread.Registry.Lookup("bkg1")
	assert.Equal(t, 5.0, q.(*sample.Sample).CrossSection())

	// Multi-file and multi-child lists survive the writer intact.
	q, _ = reread.Registry.Lookup("bkg2")
	assert.Equal(t, []string{"/data/bkg2_a.db", "/data/bkg2_b.db"}, q.(*sample.Sample).Inputs)
	p, _ := reread.Registry.Lookup("allbkg")
	assert.Equal(t, 1.5, p.(*sample.Process).KFactor())
	assert.Len(t, p.(*sample.Process).Children(), 2)
}

const xmlCatalog = `<?xml version="1.0" encoding="UTF-8"?>
<Catalog>
  <Sample name="bkg1" title="Background 1" colorIndex="4" crossSection="5.0" kFactor="1.1" weight="mcweight">
    <File>/data/bkg1_*.db</File>
    <AddCuts>trigger = 1</AddCuts>
    <IgnoreCuts>pt &gt; 20</IgnoreCuts>
  </Sample>
  <Sample name="data" title="Data" isData="true">
    <File>/data/data_*.db</File>
  </Sample>
  <Process name="all" title="Everything">
    <Child>data</Child>
    <Process name="allbkg" kFactor="1.5">
      <Child>bkg1</Child>
    </Process>
  </Process>
</Catalog>`

func TestReadXML(t *testing.T) {
	l := newLoader()
	require.NoError(t, l.ReadXML(strings.NewReader(xmlCatalog)))

	q, ok := l.Registry.Lookup("bkg1")
	require.True(t, ok)
	s := q.(*sample.Sample)
	assert.Equal(t, 5.0, s.CrossSection())
	assert.Equal(t, "mcweight", s.WeightExpression())
	// AddCuts injects, IgnoreCuts excludes.
	resolved := s.ResolveCut(cut.New("pt > 5"))
	assert.Contains(t, resolved.Expr, "trigger = 1")
	assert.NotContains(t, s.ResolveCut(cut.New("pt > 20")).Expr, "pt > 20")

	d, _ := l.Registry.Lookup("data")
	assert.True(t, d.IsData())
	// Absent crossSection attribute keeps the default, not zero.
	assert.Equal(t, 1.0, d.CrossSection())

	all, ok := l.Registry.Lookup("all")
	require.True(t, ok)
	assert.Len(t, all.Leaves(), 2)

	inner, ok := l.Registry.Lookup("allbkg")
	require.True(t, ok)
	assert.Equal(t, 1.5, inner.(*sample.Process).KFactor())
}

func TestReadXML_Latin1Charset(t *testing.T) {
	// 0xE9 is "e" with acute accent in ISO-8859-1, invalid as bare UTF-8.
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
		"<Catalog><Sample name=\"bkg\" title=\"g\xe9n\xe9rique\"><File>f.db</File></Sample></Catalog>"
	l := newLoader()
	require.NoError(t, l.ReadXML(strings.NewReader(doc)))
	q, ok := l.Registry.Lookup("bkg")
	require.True(t, ok)
	assert.Equal(t, "générique", q.Title())
}

const yamlCatalog = `
samples:
  - name: bkg1
    title: Background 1
    crossSection: 5.0
    kFactor: 1.1
    files: ["/data/bkg1_*.db"]
    addCuts: ["trigger = 1"]
  - name: bkg2
    crossSection: 2.5
    files: ["/data/bkg2_*.db"]
processes:
  - name: allbkg
    kFactor: 1.5
    children: [bkg1, bkg2]
`

func TestReadYAML(t *testing.T) {
	l := newLoader()
	require.NoError(t, l.ReadYAML(strings.NewReader(yamlCatalog)))

	q, ok := l.Registry.Lookup("bkg1")
	require.True(t, ok)
	assert.Equal(t, 5.0, q.CrossSection())

	p, ok := l.Registry.Lookup("allbkg")
	require.True(t, ok)
	assert.Equal(t, 1.5, p.(*sample.Process).KFactor())
	assert.Len(t, p.Leaves(), 2)
}
