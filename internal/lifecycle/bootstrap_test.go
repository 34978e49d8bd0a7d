package lifecycle

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"dbmanager/internal/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// bcryptArg matches a bcrypt hash of password
type bcryptArg string

func (b bcryptArg) Match(v driver.Value) bool {
	hash, ok := v.(string)
	return ok && bcrypt.CompareHashAndPassword([]byte(hash), []byte(b)) == nil
}

func newBootstrapper() *SchemaBootstrapper {
	b := NewSchemaBootstrapper("17.0")
	b.Cost = bcrypt.MinCost
	b.Now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }
	return b
}

func TestSchemaBootstrapper(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	param := regexp.QuoteMeta("INSERT INTO ir_config_parameter")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS ir_module_module")).WillReturnResult(okResult)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS ir_config_parameter")).WillReturnResult(okResult)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS res_users")).WillReturnResult(okResult)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ir_module_module")).
		WithArgs("17.0.1.3", true).WillReturnResult(okResult)
	mock.ExpectExec(param).WithArgs("database.uuid", uuidArg{}).WillReturnResult(okResult)
	mock.ExpectExec(param).WithArgs("database.create_date", "2024-03-01 09:30:00").WillReturnResult(okResult)
	mock.ExpectExec(param).WithArgs("database.secret", uuidArg{}).WillReturnResult(okResult)
	mock.ExpectExec(param).WithArgs("base.lang", "fr_BE").WillReturnResult(okResult)
	mock.ExpectExec(param).WithArgs("base.demo", "true").WillReturnResult(okResult)
	mock.ExpectExec(param).WithArgs("base.country", "BE").WillReturnResult(okResult)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO res_users")).
		WithArgs("boss", bcryptArg("s3cret"), "fr_BE").WillReturnResult(okResult)
	mock.ExpectCommit()

	opts := CreateOptions{Demo: true, Lang: "fr_BE", Login: "boss", Password: "s3cret", Country: "BE"}
	err = newBootstrapper().Bootstrap(context.Background(), database.WrapDB("demo1", db), opts)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaBootstrapper_RollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied for schema public"))
	mock.ExpectRollback()

	err = newBootstrapper().Bootstrap(context.Background(), database.WrapDB("demo1", db), CreateOptions{}.withDefaults())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create schema")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseModuleVersion(t *testing.T) {
	assert.Equal(t, "17.0.1.3", baseModuleVersion("17.0"))
	assert.Equal(t, "saas~17.2.1.3", baseModuleVersion("saas~17.2"))
}
