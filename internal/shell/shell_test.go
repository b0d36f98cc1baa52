package shell

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/metaedit/internal/apperr"
	"github.com/starford/metaedit/internal/models"
	"github.com/starford/metaedit/internal/photometa"
	"github.com/starford/metaedit/internal/session"
	"github.com/starford/metaedit/internal/testutil"
)

func newShell(t *testing.T) (*Shell, *bytes.Buffer, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "photos")
	codec := photometa.NewCodec(testutil.Logger())
	a := testutil.WriteJPEG(t, dir, "a.jpg")
	require.NoError(t, codec.Encode(a, &models.Record{Location: models.Str("Paris")}, photometa.UserEdit))
	testutil.WriteJPEG(t, dir, "b.jpg")
	testutil.WriteJPEG(t, dir, "sub/a.jpg")

	var out bytes.Buffer
	sess := session.New(codec, session.Options{Logger: testutil.Logger()})
	return New(sess, &out), &out, dir
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"ls", []string{"ls"}},
		{"  set   people  Alice ", []string{"set", "people", "Alice"}},
		{`set people "Alice, Bob"`, []string{"set", "people", "Alice, Bob"}},
		{`set comment ""`, []string{"set", "comment", ""}},
		{`open "/tmp/My Photos"`, []string{"open", "/tmp/My Photos"}},
		{"filter\tdate 2023", []string{"filter", "date", "2023"}},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseArgs(tt.in), "input %q", tt.in)
	}
}

func TestNoLibrary(t *testing.T) {
	sh, _, _ := newShell(t)
	ctx := context.Background()

	assert.ErrorIs(t, sh.Line(ctx, "show"), apperr.ErrNoLibrary)
	assert.ErrorIs(t, sh.Line(ctx, "ls"), apperr.ErrNoLibrary)
	assert.ErrorIs(t, sh.Line(ctx, "export"), apperr.ErrNoLibrary)
	assert.ErrorIs(t, sh.Line(ctx, "filter location paris"), apperr.ErrNoLibrary)
}

func TestOpenAndNavigate(t *testing.T) {
	sh, out, dir := newShell(t)
	ctx := context.Background()

	require.NoError(t, sh.Line(ctx, `open "`+dir+`"`))
	assert.Contains(t, out.String(), "3 photos")
	assert.Contains(t, out.String(), "[1/3] a.jpg")
	assert.Contains(t, out.String(), "location: Paris")
	assert.Equal(t, "metaedit [photos]> ", sh.prompt)

	out.Reset()
	require.NoError(t, sh.Line(ctx, "next"))
	assert.Contains(t, out.String(), "[2/3] b.jpg")
	assert.Contains(t, out.String(), "location: -")

	out.Reset()
	require.NoError(t, sh.Line(ctx, "show sub/a.jpg"))
	assert.Contains(t, out.String(), "[3/3] sub/a.jpg")

	out.Reset()
	require.NoError(t, sh.Line(ctx, "next"))
	assert.Contains(t, out.String(), "[3/3] sub/a.jpg")

	require.NoError(t, sh.Line(ctx, "prev"))
	assert.ErrorIs(t, sh.Line(ctx, "show missing.jpg"), apperr.ErrUnknownPath)
}

func TestSetWritesFile(t *testing.T) {
	sh, out, dir := newShell(t)
	ctx := context.Background()
	require.NoError(t, sh.Line(ctx, `open "`+dir+`"`))

	out.Reset()
	require.NoError(t, sh.Line(ctx, `set people "Bob, Alice"`))
	assert.Contains(t, out.String(), "people:   Alice, Bob")

	require.NoError(t, sh.Line(ctx, `set comment ""`))
	assert.Contains(t, out.String(), `comment:  ""`)

	rec, err := photometa.NewCodec(testutil.Logger()).Decode(filepath.Join(dir, "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, rec.People.Names())
	require.NotNil(t, rec.Comment)
	assert.Empty(t, *rec.Comment)
	require.NotNil(t, rec.Location)
	assert.Equal(t, "Paris", *rec.Location)

	assert.Error(t, sh.Line(ctx, "set colour red"))
	assert.Error(t, sh.Line(ctx, "set"))
}

func TestFilterListAndExport(t *testing.T) {
	sh, out, dir := newShell(t)
	ctx := context.Background()
	require.NoError(t, sh.Line(ctx, `open "`+dir+`"`))

	out.Reset()
	require.NoError(t, sh.Line(ctx, "filter location PARIS"))
	assert.Contains(t, out.String(), "1 of 3 photos match")

	out.Reset()
	require.NoError(t, sh.Line(ctx, "ls"))
	assert.Contains(t, out.String(), "* a.jpg")
	assert.NotContains(t, out.String(), "b.jpg")

	out.Reset()
	require.NoError(t, sh.Line(ctx, "filter"))
	assert.Contains(t, out.String(), "location: PARIS")

	out.Reset()
	require.NoError(t, sh.Line(ctx, "export"))
	assert.Contains(t, out.String(), "Exported 1 photos")
	_, err := os.Stat(filepath.Join(filepath.Dir(dir), "filtered_images", "a.jpg"))
	assert.NoError(t, err)

	out.Reset()
	require.NoError(t, sh.Line(ctx, "clear"))
	assert.Contains(t, out.String(), "3 of 3 photos match")

	out.Reset()
	require.NoError(t, sh.Line(ctx, "export"))
	assert.Contains(t, out.String(), "Exported 3 photos")
	assert.Contains(t, out.String(), "-> a_2.jpg")
}

func TestRunScript(t *testing.T) {
	sh, out, dir := newShell(t)
	script := strings.Join([]string{
		"# tag the second photo",
		`open "` + dir + `"`,
		"",
		"next",
		"set group holiday",
		"quit",
		"set group ignored",
	}, "\n")

	require.NoError(t, sh.RunScript(context.Background(), strings.NewReader(script)))
	assert.Contains(t, out.String(), "group:    holiday")

	rec, err := photometa.NewCodec(testutil.Logger()).Decode(filepath.Join(dir, "b.jpg"))
	require.NoError(t, err)
	require.NotNil(t, rec.Group)
	assert.Equal(t, "holiday", *rec.Group)
}

func TestRunScript_StopsOnError(t *testing.T) {
	sh, _, _ := newShell(t)
	err := sh.RunScript(context.Background(), strings.NewReader("help\nbogus\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestHelpAndUnknown(t *testing.T) {
	sh, out, _ := newShell(t)
	ctx := context.Background()

	require.NoError(t, sh.Line(ctx, "help"))
	for _, h := range commandHelps {
		assert.Contains(t, out.String(), h.Name)
	}
	out.Reset()
	require.NoError(t, sh.Line(ctx, "help set"))
	assert.Contains(t, out.String(), "Syntax: set <field> [value]")

	assert.Error(t, sh.Line(ctx, "help nope"))
	assert.Error(t, sh.Line(ctx, "frobnicate"))
	assert.ErrorIs(t, sh.Line(ctx, "QUIT"), ErrQuit)
	assert.NoError(t, sh.Line(ctx, "   "))
}
