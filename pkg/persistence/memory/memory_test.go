package memory_test

import (
	"testing"

	"github.com/ycslms/lmsflow/pkg/persistence"
	"github.com/ycslms/lmsflow/pkg/persistence/memory"
	"github.com/ycslms/lmsflow/pkg/testutil"
)

func TestPersistence(t *testing.T) {
	t.Parallel()

	testutil.RunPersistenceSuite(t, func(t *testing.T) persistence.Persistence {
		t.Helper()

		return memory.NewPersistence()
	})
}
