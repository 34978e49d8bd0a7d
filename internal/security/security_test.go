package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogger_WritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditLogger(&buf, true)

	a.LogOperationStart("alice", "drop", "demo1", map[string]interface{}{"force": true})
	a.LogOperationFailed("alice", "drop", "demo1", errors.New("database is being accessed by other users"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "DROP_START", first["action"])
	assert.Equal(t, "demo1", first["resource"])
	assert.Equal(t, true, first["force"])
	assert.Equal(t, "AUDIT", first["msg"])

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "FAILURE", second["result"])
	assert.Contains(t, second["error"], "other users")
}

func TestAuditLogger_DisabledAndNil(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditLogger(&buf, false)
	a.LogOperationComplete("bob", "create", "demo1", time.Second)
	assert.Empty(t, buf.String())

	var none *AuditLogger
	none.LogOperationStart("bob", "create", "demo1", nil)
	assert.NoError(t, none.Close())
}

func TestOpenAuditLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.log")

	a, err := OpenAuditLog(path)
	require.NoError(t, err)
	a.LogOperationComplete("carol", "rename", "demo2", 2*time.Second)
	require.NoError(t, a.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action":"RENAME_COMPLETE"`)

	disabled, err := OpenAuditLog("")
	require.NoError(t, err)
	disabled.LogOperationStart("carol", "drop", "x", nil)
	assert.NoError(t, disabled.Close())
}

func TestChecksumFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.zip")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	sum, err := ChecksumFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", sum)

	assert.NoError(t, VerifyChecksum(path, sum))
	assert.Error(t, VerifyChecksum(path, strings.Repeat("0", 64)))

	_, err = ChecksumFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
