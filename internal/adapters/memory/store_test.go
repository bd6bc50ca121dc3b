package memory_test

import (
	"testing"

	"github.com/urbangroup/botflow/internal/adapters/memory"
	"github.com/urbangroup/botflow/pkg/ports"
)

func TestMemoryScriptStore_Contract(t *testing.T) {
	ports.RunScriptStoreContract(t, memory.NewScriptStore())
}

func TestMemorySessionStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, memory.NewSessionStore())
}
