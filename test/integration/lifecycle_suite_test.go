//go:build integration

package integration

import (
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/focusd/daemon_core/test/fixtures"
)

func TestMain(m *testing.M) {
	if fixtures.IsLockHolder() {
		fixtures.RunLockHolder()
	}
	os.Exit(m.Run())
}

func TestLifecycleIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Lifecycle Integration Suite")
}
