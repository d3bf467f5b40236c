package leader_test

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/k3s"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/config"
	"github.com/jensholdgaard/discord-giveaway-bot/internal/leader"
)

// replica is one leader election candidate.
type replica struct {
	leading atomic.Bool
	led     atomic.Bool
	cancel  context.CancelFunc
	done    chan error
}

func startReplica(ctx context.Context, cfg config.LeaderElectionConfig, active *atomic.Int32, overlap *atomic.Bool) *replica {
	ctx, cancel := context.WithCancel(ctx)
	r := &replica{cancel: cancel, done: make(chan error, 1)}
	go func() {
		r.done <- leader.Run(ctx, cfg, slog.Default(),
			func(ctx context.Context) {
				if active.Add(1) > 1 {
					overlap.Store(true)
				}
				r.leading.Store(true)
				r.led.Store(true)
				<-ctx.Done()
				r.leading.Store(false)
				active.Add(-1)
			},
			func() {},
		)
	}()
	return r
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(30 * time.Second)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-ticker.C:
		}
	}
}

// TestLeaderElection_K3s runs two replicas against a real Lease and checks
// that only one runs giveaways at a time and that the standby takes over
// when the leader steps down. Skipped in short mode.
func TestLeaderElection_K3s(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping k3s integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	ctr, err := k3s.Run(ctx, "rancher/k3s:v1.31.6-k3s1")
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("starting k3s container: %v", err)
	}

	kubeConfigYaml, err := ctr.GetKubeConfig(ctx)
	if err != nil {
		t.Fatalf("getting kubeconfig: %v", err)
	}
	restCfg, err := clientcmd.RESTConfigFromKubeConfig(kubeConfigYaml)
	if err != nil {
		t.Fatalf("building rest config: %v", err)
	}
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		t.Fatalf("creating kubernetes client: %v", err)
	}

	origFactory := leader.ClientFactory
	leader.ClientFactory = func() (kubernetes.Interface, error) {
		return clientset, nil
	}
	t.Cleanup(func() { leader.ClientFactory = origFactory })

	base := config.LeaderElectionConfig{
		Enabled:        true,
		LeaseName:      "giveawaybot-test-leader",
		LeaseNamespace: "default",
		LeaseDuration:  5 * time.Second,
		RenewDeadline:  3 * time.Second,
		RetryPeriod:    1 * time.Second,
	}
	first, second := base, base
	first.Identity = "giveawaybot-0"
	second.Identity = "giveawaybot-1"

	var active atomic.Int32
	var overlap atomic.Bool

	a := startReplica(ctx, first, &active, &overlap)
	waitFor(t, "first replica to lead", a.leading.Load)

	b := startReplica(ctx, second, &active, &overlap)
	// Give the standby a few retry periods to try for the lease.
	time.Sleep(3 * base.RetryPeriod)
	if b.led.Load() {
		t.Fatal("standby replica acquired a lease that is still held")
	}

	a.cancel()
	select {
	case runErr := <-a.done:
		if runErr != nil {
			t.Fatalf("leader.Run() error = %v", runErr)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the first replica to step down")
	}

	waitFor(t, "standby replica to take over", b.leading.Load)
	if overlap.Load() {
		t.Error("both replicas ran giveaways at the same time")
	}

	b.cancel()
	select {
	case <-b.done:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the second replica to stop")
	}
}
