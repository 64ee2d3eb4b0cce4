package network

import (
	"context"
	"log"
	"time"

	"github.com/masaar/masaar-node/pkg/crypto"
)

// RunRetryLoop resends due reliable DATA through OnResend until ctx is
// cancelled
func (n *Node) RunRetryLoop(ctx context.Context) error {
	ticker := time.NewTicker(n.retryInterval)
	defer ticker.Stop()

	log.Printf("🔄 Retry loop started (interval: %v)", n.retryInterval)

	for {
		select {
		case <-ctx.Done():
			log.Println("Retry loop stopped")
			return ctx.Err()
		case now := <-ticker.C:
			n.RetryDue(now)
		}
	}
}

// RetryDue resends every entry due at now and returns how many were resent.
// OnResend fires only once the tracker has accepted the resend.
func (n *Node) RetryDue(now time.Time) int {
	due := n.tracker.Due(now)

	resent := 0
	for _, e := range due {
		if err := n.tracker.MarkResent(e.Seq); err != nil {
			// Acked between Due and here
			continue
		}

		log.Printf("🔁 Resending %s to %s (seq: %d, attempt: %d, after: %s)",
			crypto.Short(e.Fingerprint), e.Dst, e.Seq, e.Attempts+1, e.LastReason)

		if n.OnResend != nil {
			n.OnResend(e)
		}

		n.metrics.RecordResend()
		resent++
	}

	if resent > 0 {
		n.statsMu.Lock()
		n.resent += uint64(resent)
		n.statsMu.Unlock()
	}
	n.metrics.SetPending(n.tracker.Len())

	return resent
}
