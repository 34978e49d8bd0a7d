package lifecycle

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"regexp"
	"strings"
	"testing"

	"dbmanager/internal/archive"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const installedModules = "SELECT name, latest_version FROM ir_module_module WHERE state = 'installed'"

func TestDump_Zip(t *testing.T) {
	f := newFixture(t, "demo1")
	f.c.exist("demo1")
	f.writeFilestore(t, "demo1", "ab/abcdef", "attachment")
	f.runner.output = []byte("CREATE TABLE res_partner (id serial);\n")

	f.c.mock("postgres").ExpectQuery(regexp.QuoteMeta("SHOW server_version")).
		WillReturnRows(sqlmock.NewRows([]string{"server_version"}).AddRow("16.4"))
	f.c.mock("demo1").ExpectQuery(regexp.QuoteMeta(installedModules)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "latest_version"}).
			AddRow("base", "17.0.1.3").AddRow("web", nil))

	var buf bytes.Buffer
	tmp, rep, err := f.m.Dump(context.Background(), "demo1", &buf, DumpOptions{Format: FormatZip, IncludeFilestore: true})
	require.NoError(t, err)
	assert.Nil(t, tmp)
	assert.True(t, rep.Filestore)
	assert.False(t, rep.HasWarnings(), "warnings: %v", rep.Warnings)

	require.Len(t, f.runner.cmds, 1)
	cmd := f.runner.cmds[0]
	assert.Equal(t, "pg_dump", cmd.Tool)
	assert.NotContains(t, cmd.Args, "--format=c")
	assert.Equal(t, "demo1", cmd.Args[len(cmd.Args)-1])

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.NotEmpty(t, zr.File)
	assert.Equal(t, archive.DumpName, zr.File[len(zr.File)-1].Name, "dump.sql is the last member")

	members := map[string]*zip.File{}
	for _, zf := range zr.File {
		members[zf.Name] = zf
	}
	require.Contains(t, members, archive.ManifestName)
	require.Contains(t, members, "filestore/ab/abcdef")

	in, err := members[archive.ManifestName].Open()
	require.NoError(t, err)
	manifest, err := archive.ReadManifest(in)
	in.Close()
	require.NoError(t, err)
	assert.Equal(t, "demo1", manifest.DBName)
	assert.Equal(t, "16.4", manifest.PGVersion)
	assert.Equal(t, "17.0", manifest.MajorVersion)
	assert.Equal(t, map[string]string{"base": "17.0.1.3", "web": ""}, manifest.Modules)

	in, err = members[archive.DumpName].Open()
	require.NoError(t, err)
	sql, err := io.ReadAll(in)
	in.Close()
	require.NoError(t, err)
	assert.Equal(t, string(f.runner.output), string(sql))

	assert.False(t, f.m.server.Registry().Held("demo1"))
	f.c.verify(t)
}

func TestDump_ZipWithoutFilestore(t *testing.T) {
	f := newFixture(t, "demo1")
	f.c.exist("demo1")
	f.writeFilestore(t, "demo1", "f", "skip me")

	f.c.mock("postgres").ExpectQuery("SHOW server_version").
		WillReturnRows(sqlmock.NewRows([]string{"server_version"}).AddRow("15.6"))
	f.c.mock("demo1").ExpectQuery(regexp.QuoteMeta(installedModules)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "latest_version"}))

	var buf bytes.Buffer
	_, rep, err := f.m.Dump(context.Background(), "demo1", &buf, DumpOptions{Format: FormatZip})
	require.NoError(t, err)
	assert.False(t, rep.Filestore)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	for _, zf := range zr.File {
		assert.False(t, strings.HasPrefix(zf.Name, archive.FilestoreDir), "unexpected member %s", zf.Name)
	}
}

func TestDump_ManifestWarnings(t *testing.T) {
	f := newFixture(t, "demo1")
	f.c.exist("demo1")

	f.c.mock("postgres").ExpectQuery("SHOW server_version").WillReturnError(errors.New("connection reset"))
	f.c.mock("demo1").ExpectQuery(regexp.QuoteMeta(installedModules)).
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "ir_module_module" does not exist`})

	var buf bytes.Buffer
	_, rep, err := f.m.Dump(context.Background(), "demo1", &buf, DumpOptions{})
	require.NoError(t, err)
	assert.True(t, rep.Warned("manifest server version"))
	assert.True(t, rep.Warned("manifest modules"))

	format, err := archive.DetectReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, archive.FormatZip, format)
	f.c.verify(t)
}

func TestDump_RawToTempFile(t *testing.T) {
	f := newFixture(t)
	f.c.exist("demo1")
	f.runner.output = []byte("PGDMP\x01\x0e\x00\x04\x08\x01\x01custom")

	tmp, rep, err := f.m.Dump(context.Background(), "demo1", nil, DumpOptions{Format: FormatDump})
	require.NoError(t, err)
	require.NotNil(t, tmp)
	t.Cleanup(func() {
		tmp.Close()
		os.Remove(tmp.Name())
	})
	assert.False(t, rep.Filestore)

	require.Len(t, f.runner.cmds, 1)
	assert.Contains(t, f.runner.cmds[0].Args, "--format=c")
	for _, arg := range f.runner.cmds[0].Args {
		assert.False(t, strings.HasPrefix(arg, "--file="), "raw dumps stream to stdout")
	}

	data, err := io.ReadAll(tmp)
	require.NoError(t, err)
	assert.Equal(t, f.runner.output, data)

	format, err := archive.DetectFormat(tmp.Name())
	require.NoError(t, err)
	assert.Equal(t, archive.FormatCustomDump, format)
}

func TestDump_Refusals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.m.Dump(ctx, "missing", &bytes.Buffer{}, DumpOptions{})
	assert.ErrorIs(t, err, ErrNotExist)

	f.c.exist("demo1")
	_, _, err = f.m.Dump(ctx, "demo1", &bytes.Buffer{}, DumpOptions{Format: "tar"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported dump format")
	assert.Empty(t, f.runner.cmds)
}

func TestDump_ToolFailureRemovesTempFile(t *testing.T) {
	f := newFixture(t)
	f.c.exist("demo1")
	f.runner.err = errors.New("pg_dump: error: connection to server failed")

	scratch := t.TempDir()
	t.Setenv("TMPDIR", scratch)

	tmp, _, err := f.m.Dump(context.Background(), "demo1", nil, DumpOptions{Format: FormatDump})
	require.Error(t, err)
	assert.Nil(t, tmp)

	left, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, left)
}
