package issue_test

import (
	"os"
	"testing"

	"issue-service/internal/testdb"
)

func TestMain(m *testing.M) {
	code := m.Run()
	testdb.TerminateShared()
	os.Exit(code)
}
