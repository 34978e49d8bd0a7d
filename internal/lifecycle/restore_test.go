package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"dbmanager/internal/archive"
	"dbmanager/internal/pgtool"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const restoredSQL = "CREATE TABLE res_partner (id serial);\n"

// buildDump zips a dump directory the way Dump lays it out
func buildDump(t *testing.T, appVersion string, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	if appVersion != "" {
		m := archive.NewManifest("prod", appVersion, "16.4", map[string]string{"base": appVersion + ".1.3"})
		require.NoError(t, m.Write(filepath.Join(dir, archive.ManifestName)))
	}

	out := filepath.Join(t.TempDir(), "prod.zip")
	file, err := os.Create(out)
	require.NoError(t, err)
	require.NoError(t, archive.WriteDir(file, dir))
	require.NoError(t, file.Close())
	return out
}

func writeDumpFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRestore_Zip(t *testing.T) {
	f := newFixture(t, "restored")
	src := buildDump(t, "17.0", map[string]string{
		archive.DumpName:      restoredSQL,
		"filestore/ab/abcdef": "attachment",
		"notes.txt":           "ignored",
	})

	f.c.expectCreate(`CREATE DATABASE "restored" ENCODING 'unicode' LC_COLLATE 'C' TEMPLATE "template0"`)
	f.c.expectExtensions("restored")
	f.c.expectIdentity("restored")

	rep, err := f.m.Restore(context.Background(), "restored", src, RestoreOptions{Copy: true})
	require.NoError(t, err)
	assert.True(t, rep.Filestore)
	assert.False(t, rep.HasWarnings(), "warnings: %v", rep.Warnings)

	require.Len(t, f.runner.cmds, 1)
	cmd := f.runner.cmds[0]
	assert.Equal(t, "psql", cmd.Tool)
	assert.Contains(t, cmd.Args, "ON_ERROR_STOP=1")
	assert.Contains(t, cmd.Args, "--dbname=restored")
	assert.Equal(t, restoredSQL, f.runner.loaded)

	assert.Equal(t, "attachment", f.readFilestore(t, "restored", "ab/abcdef"))
	assert.NoFileExists(t, filepath.Join(f.m.Store().Path("restored"), "notes.txt"))
	assert.False(t, f.m.server.Registry().Held("restored"))
	f.c.verify(t)
}

func TestRestore_CustomDump(t *testing.T) {
	f := newFixture(t, "restored")
	src := writeDumpFile(t, "prod.dump", "PGDMP\x01\x0e\x00\x04\x08\x01\x01")

	f.c.expectCreate(`CREATE DATABASE "restored"`)
	f.c.expectExtensions("restored")

	rep, err := f.m.Restore(context.Background(), "restored", src, RestoreOptions{})
	require.NoError(t, err)
	assert.False(t, rep.Filestore)

	require.Len(t, f.runner.cmds, 1)
	assert.Equal(t, "pg_restore", f.runner.cmds[0].Tool)
	assert.Equal(t, []string{"--no-owner", "--exit-on-error", "--dbname=restored", src}, f.runner.cmds[0].Args)
	f.c.verify(t)
}

func TestRestore_PlainSQL(t *testing.T) {
	f := newFixture(t, "restored")
	src := writeDumpFile(t, "prod.sql", restoredSQL)

	f.c.expectCreate(`CREATE DATABASE "restored"`)
	f.c.expectExtensions("restored")

	_, err := f.m.Restore(context.Background(), "restored", src, RestoreOptions{})
	require.NoError(t, err)
	require.Len(t, f.runner.cmds, 1)
	assert.Equal(t, "psql", f.runner.cmds[0].Tool)
	assert.Equal(t, restoredSQL, f.runner.loaded)
}

func TestRestore_LoaderFailure(t *testing.T) {
	f := newFixture(t, "restored")
	src := writeDumpFile(t, "prod.dump", "PGDMP\x01\x0e")
	f.runner.err = &pgtool.ExitError{
		Tool:      "pg_restore",
		Err:       errors.New("exit status 1"),
		LastError: "pg_restore: error: could not read input file",
	}

	f.c.expectCreate(`CREATE DATABASE "restored"`)
	f.c.expectExtensions("restored")

	_, err := f.m.Restore(context.Background(), "restored", src, RestoreOptions{Copy: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRestoreFailed)
	assert.Contains(t, err.Error(), "couldn't restore database")

	var exitErr *pgtool.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Contains(t, exitErr.LastError, "could not read input file")

	// the half-loaded database is left for the caller to drop
	f.c.verify(t)
}

func TestRestore_Refusals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.c.exist("prod")
	_, err := f.m.Restore(ctx, "prod", writeDumpFile(t, "x.sql", restoredSQL), RestoreOptions{})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = f.m.Restore(ctx, "restored", filepath.Join(t.TempDir(), "absent.zip"), RestoreOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read dump")

	assert.Empty(t, f.runner.cmds)
	f.c.verify(t)
}

func TestRestore_ZipWithoutDump(t *testing.T) {
	f := newFixture(t, "restored")
	src := buildDump(t, "17.0", map[string]string{"filestore/f": "x"})

	f.c.expectCreate(`CREATE DATABASE "restored"`)
	f.c.expectExtensions("restored")

	_, err := f.m.Restore(context.Background(), "restored", src, RestoreOptions{})
	assert.ErrorIs(t, err, ErrRestoreFailed)
	assert.ErrorIs(t, err, archive.ErrNoDump)
	assert.Empty(t, f.runner.cmds)
	assert.False(t, f.m.Store().Exists("restored"))
}

func TestRestore_ManifestMismatchIsWarning(t *testing.T) {
	f := newFixture(t, "restored")
	src := buildDump(t, "16.0", map[string]string{archive.DumpName: restoredSQL})

	f.c.expectCreate(`CREATE DATABASE "restored"`)
	f.c.expectExtensions("restored")

	rep, err := f.m.Restore(context.Background(), "restored", src, RestoreOptions{})
	require.NoError(t, err)
	assert.True(t, rep.Warned("manifest"))
	assert.Contains(t, rep.Warnings[0].Err.Error(), "16.0")
	assert.False(t, rep.Filestore)
}

func TestRestore_ZipWithoutManifestIsWarning(t *testing.T) {
	f := newFixture(t, "restored")
	src := buildDump(t, "", map[string]string{archive.DumpName: restoredSQL})

	f.c.expectCreate(`CREATE DATABASE "restored"`)
	f.c.expectExtensions("restored")

	rep, err := f.m.Restore(context.Background(), "restored", src, RestoreOptions{})
	require.NoError(t, err)
	assert.True(t, rep.Warned("manifest"))
}

func TestDumpRestore_RoundTrip(t *testing.T) {
	f := newFixture(t, "demo1", "restored")
	ctx := context.Background()
	f.c.exist("demo1")
	f.writeFilestore(t, "demo1", "ab/abcdef", "attachment")
	f.runner.output = []byte(restoredSQL)

	f.c.mock("postgres").ExpectQuery(regexp.QuoteMeta("SHOW server_version")).
		WillReturnRows(sqlmock.NewRows([]string{"server_version"}).AddRow("16.4"))
	f.c.mock("demo1").ExpectQuery(regexp.QuoteMeta(installedModules)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "latest_version"}).
			AddRow("base", "17.0.1.3").AddRow("sale", "17.0.1.2"))
	f.c.expectCreate(`CREATE DATABASE "restored" ENCODING 'unicode' LC_COLLATE 'C' TEMPLATE "template0"`)
	f.c.expectExtensions("restored")
	f.c.expectIdentity("restored")

	src := filepath.Join(t.TempDir(), "demo1.zip")
	out, err := os.Create(src)
	require.NoError(t, err)
	_, _, err = f.m.Dump(ctx, "demo1", out, DumpOptions{Format: FormatZip, IncludeFilestore: true})
	require.NoError(t, out.Close())
	require.NoError(t, err)

	rep, err := f.m.Restore(ctx, "restored", src, RestoreOptions{Copy: true})
	require.NoError(t, err)
	assert.True(t, rep.Filestore)
	assert.False(t, rep.HasWarnings(), "warnings: %v", rep.Warnings)
	f.c.exist("restored")

	assert.True(t, f.m.Exists(ctx, "restored"))
	assert.Equal(t, restoredSQL, f.runner.loaded)
	assert.Equal(t, "attachment", f.readFilestore(t, "restored", "ab/abcdef"))
	assert.Equal(t, "attachment", f.readFilestore(t, "demo1", "ab/abcdef"))

	extracted, err := archive.Extract(src, t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, extracted.Manifest)
	assert.Equal(t, "demo1", extracted.Manifest.DBName)
	assert.Equal(t, map[string]string{"base": "17.0.1.3", "sale": "17.0.1.2"}, extracted.Manifest.Modules)

	f.c.verify(t)
}
