//go:build integration

package integration

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/daemon_core/internal/daemon"
	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
	"github.com/eliteGoblin/focusd/daemon_core/internal/infra"
	"github.com/eliteGoblin/focusd/daemon_core/internal/metrics"
	"github.com/eliteGoblin/focusd/daemon_core/internal/singleton"
	"github.com/eliteGoblin/focusd/daemon_core/test/fixtures"
)

const app = "lifecycled"

var _ = Describe("Instance takeover", func() {
	var (
		dir      string
		lockPath string
		report   *infra.Reporter
		holder   *fixtures.LockHolder
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		lockPath = filepath.Join(dir, singleton.LockFileName(app))
		report = infra.NewReporter(zap.NewNop(), GinkgoWriter)
	})

	AfterEach(func() {
		if holder != nil {
			holder.Kill()
			holder = nil
		}
	})

	takeover := func(lock *singleton.FcntlLock) *singleton.Takeover {
		return &singleton.Takeover{
			Probe:     lock,
			Signaller: infra.NewProcessSignaller(),
			Report:    report,
			Sleep:     time.Sleep,
			Timeout:   10 * time.Second,
			Interval:  50 * time.Millisecond,
		}
	}

	Context("when another instance holds the working directory", func() {
		BeforeEach(func() {
			var err error
			holder, err = fixtures.StartLockHolder("modern", lockPath, false)
			Expect(err).NotTo(HaveOccurred())
		})

		It("restart terminates it and takes the lock", func() {
			lock, err := singleton.OpenInDir(dir, app)
			Expect(err).NotTo(HaveOccurred())
			defer lock.Close()

			outcome, err := takeover(lock).Acquire(domain.RunModeRestart)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(singleton.Replaced))
			Expect(holder.Exited(5 * time.Second)).To(BeTrue())

			Expect(lock.WritePID(os.Getpid())).To(Succeed())
			content, err := os.ReadFile(lockPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(content)).To(Equal(strconv.Itoa(os.Getpid()) + "\n"))
		})

		It("start refuses without signalling it", func() {
			lock, err := singleton.OpenInDir(dir, app)
			Expect(err).NotTo(HaveOccurred())
			defer lock.Close()

			_, err = takeover(lock).Acquire(domain.RunModeStart)
			Expect(err).To(MatchError(singleton.ErrAlreadyLocked))
			Expect(holder.Exited(500 * time.Millisecond)).To(BeFalse())
		})

		It("stop terminates it and reports the replacement", func() {
			lock, err := singleton.OpenInDir(dir, app)
			Expect(err).NotTo(HaveOccurred())
			defer lock.Close()

			outcome, err := takeover(lock).Acquire(domain.RunModeStop)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(singleton.Replaced))
			Expect(holder.Exited(5 * time.Second)).To(BeTrue())
		})
	})

	Context("when the holder ignores termination", func() {
		It("gives up after the timeout", func() {
			var err error
			holder, err = fixtures.StartLockHolder("modern", lockPath, true)
			Expect(err).NotTo(HaveOccurred())

			lock, err := singleton.OpenInDir(dir, app)
			Expect(err).NotTo(HaveOccurred())
			defer lock.Close()

			t := takeover(lock)
			t.Timeout = 300 * time.Millisecond
			_, err = t.Acquire(domain.RunModeRestart)
			Expect(err).To(MatchError(singleton.ErrLockTimeout))
		})
	})

	Context("with a legacy lock file", func() {
		var legacyPath string

		BeforeEach(func() {
			legacyPath = filepath.Join(dir, "legacy.pid")
		})

		legacy := func() *singleton.Legacy {
			return &singleton.Legacy{
				Path:      legacyPath,
				Signaller: infra.NewProcessSignaller(),
				Report:    report,
				Sleep:     time.Sleep,
				Timeout:   10 * time.Second,
				Interval:  50 * time.Millisecond,
			}
		}

		It("evicts a predecessor still holding it", func() {
			var err error
			holder, err = fixtures.StartLockHolder("legacy", legacyPath, false)
			Expect(err).NotTo(HaveOccurred())

			Expect(legacy().Check(domain.RunModeRestart)).To(Succeed())
			Expect(holder.Exited(5 * time.Second)).To(BeTrue())
			Expect(legacyPath).NotTo(BeAnExistingFile())
		})

		It("refuses to start while a predecessor holds it", func() {
			var err error
			holder, err = fixtures.StartLockHolder("legacy", legacyPath, false)
			Expect(err).NotTo(HaveOccurred())

			Expect(legacy().Check(domain.RunModeStart)).To(MatchError(singleton.ErrAlreadyLocked))
			Expect(legacyPath).To(BeAnExistingFile())
		})

		It("removes a stale file", func() {
			Expect(os.WriteFile(legacyPath, []byte("99999"), 0o644)).To(Succeed())

			Expect(legacy().Check(domain.RunModeStart)).To(Succeed())
			Expect(legacyPath).NotTo(BeAnExistingFile())
		})
	})
})

var _ = Describe("Signal driven shutdown", func() {
	It("drains on SIGTERM and stops once every module agrees", func() {
		rt := daemon.NewRuntime(daemon.Options{
			App:     app,
			Metrics: metrics.New(app),
		})

		vetoes := 0
		destructed := false
		steps := []daemon.InitStep{{Name: "drainer", Init: func(rt *daemon.Runtime, _ io.Writer) error {
			rt.OnCanExit(domain.CanExitFunc(func() bool {
				vetoes++
				return vetoes > 2
			}))
			rt.OnDestruct(domain.DestructFunc(func() { destructed = true }))
			return nil
		}}}
		Expect(rt.Initialize(steps, infra.NewReporter(zap.NewNop(), io.Discard))).To(Succeed())

		guardian := daemon.NewSignalGuardian(rt.Control(), nil)
		guardian.Start()
		defer guardian.Stop()

		done := make(chan error, 1)
		go func() { done <- rt.Run(context.Background()) }()

		Consistently(done, 200*time.Millisecond).ShouldNot(Receive())
		Expect(syscall.Kill(os.Getpid(), syscall.SIGTERM)).To(Succeed())

		var runErr error
		Eventually(done, 5*time.Second).Should(Receive(&runErr))
		Expect(runErr).NotTo(HaveOccurred())
		Expect(vetoes).To(Equal(3))

		rt.Destruct()
		Expect(destructed).To(BeTrue())
	})
})
