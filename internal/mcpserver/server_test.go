package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/metaedit/internal/models"
	"github.com/starford/metaedit/internal/photometa"
	"github.com/starford/metaedit/internal/photoservice"
	"github.com/starford/metaedit/internal/session"
	"github.com/starford/metaedit/internal/testutil"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()

	libDir := filepath.Join(t.TempDir(), "photos")
	codec := photometa.NewCodec(testutil.Logger())
	a := testutil.WriteJPEG(t, libDir, "a.jpg")
	require.NoError(t, codec.Encode(a, &models.Record{People: models.NewPeopleSet("Alice", "Bob"), Location: models.Str("Paris")}, photometa.UserEdit))
	testutil.WriteJPEG(t, libDir, "b.jpg")

	sess := session.New(codec, session.Options{Logger: testutil.Logger()})
	require.NoError(t, sess.Open(context.Background(), libDir))
	return New(photoservice.NewService(sess), "test"), libDir
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_photos":
		result, err = srv.searchPhotos(ctx, req)
	case "get_photo":
		result, err = srv.getPhoto(ctx, req)
	case "update_photo":
		result, err = srv.updatePhoto(ctx, req)
	case "export_photos":
		result, err = srv.exportPhotos(ctx, req)
	case "get_metadata_contract":
		result, err = srv.getMetadataContract(ctx, req)
	default:
		require.FailNow(t, "unknown tool", name)
	}

	require.NoError(t, err, "tool %s", name)
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSearchPhotos(t *testing.T) {
	srv, _ := testServer(t)

	type searchResult struct {
		Photos []photoservice.PhotoListItem `json:"photos"`
		Total  int                          `json:"total"`
	}

	r := callTool(t, srv, "search_photos", map[string]interface{}{"people": "alice"})
	var resp searchResult
	require.NoError(t, json.Unmarshal([]byte(resultText(r)), &resp), resultText(r))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Photos, 1)
	assert.Equal(t, "a.jpg", resp.Photos[0].Path)

	r = callTool(t, srv, "search_photos", map[string]interface{}{})
	resp = searchResult{}
	require.NoError(t, json.Unmarshal([]byte(resultText(r)), &resp))
	assert.Equal(t, 2, resp.Total)
}

func TestGetPhoto(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "get_photo", map[string]interface{}{"path": "a.jpg"})
	require.False(t, r.IsError, resultText(r))
	var photo photoservice.PhotoDetail
	require.NoError(t, json.Unmarshal([]byte(resultText(r)), &photo))
	require.NotNil(t, photo.Location)
	assert.Equal(t, "Paris", *photo.Location)
	assert.NotEmpty(t, photo.Checksum)
}

func TestGetPhotoMissing(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "get_photo", map[string]interface{}{"path": "nope.jpg"})
	assert.True(t, r.IsError, "missing photo")
	r = callTool(t, srv, "get_photo", map[string]interface{}{})
	assert.True(t, r.IsError, "missing path argument")
}

func TestUpdatePhoto(t *testing.T) {
	srv, libDir := testServer(t)

	r := callTool(t, srv, "update_photo", map[string]interface{}{
		"path":    "b.jpg",
		"group":   "trip",
		"comment": "",
	})
	require.False(t, r.IsError, resultText(r))

	rec, err := photometa.NewCodec(testutil.Logger()).Decode(filepath.Join(libDir, "b.jpg"))
	require.NoError(t, err)
	require.NotNil(t, rec.Group)
	assert.Equal(t, "trip", *rec.Group)
	require.NotNil(t, rec.Comment, "comment should be set")
	assert.Equal(t, "", *rec.Comment)
	assert.Nil(t, rec.Location, "location should stay unset")
}

func TestUpdatePhotoChecksumMismatch(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "update_photo", map[string]interface{}{
		"path":     "a.jpg",
		"date":     "2020",
		"checksum": "deadbeef",
	})
	assert.True(t, r.IsError)
	assert.Contains(t, resultText(r), "checksum mismatch")
}

func TestUpdatePhotoNoFields(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "update_photo", map[string]interface{}{"path": "a.jpg"})
	assert.True(t, r.IsError, "expected error without fields")
}

func TestExportPhotos(t *testing.T) {
	srv, libDir := testServer(t)

	r := callTool(t, srv, "export_photos", map[string]interface{}{"location": "paris"})
	require.False(t, r.IsError, resultText(r))
	assert.Regexp(t, `^exported 1 photos`, resultText(r))

	dest := filepath.Join(filepath.Dir(libDir), "filtered_images")
	assert.FileExists(t, filepath.Join(dest, "a.jpg"))
}

func TestMetadataContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_metadata_contract", nil)
	assert.Contains(t, resultText(r), "ImageDescription")

	contents, err := srv.readMetadataFormatResource(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, contents)
	tc, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok, "resource = %+v", contents[0])
	assert.Equal(t, formatURI, tc.URI)
}

func TestRegisteredTools(t *testing.T) {
	srv, _ := testServer(t)
	tools := srv.MCPServer().ListTools()
	for _, name := range []string{"search_photos", "get_photo", "update_photo", "export_photos", "get_metadata_contract"} {
		assert.Contains(t, tools, name)
	}

	tool := srv.MCPServer().GetTool("export_photos")
	require.NotNil(t, tool)
	require.NotNil(t, tool.Tool.Annotations.DestructiveHint)
	assert.True(t, *tool.Tool.Annotations.DestructiveHint, "export_photos should be marked destructive")
}
