package auditor

// #region imports
import (
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/danielpatrickdp/mirror-ledger/internal/ledger"
)

// #endregion

// #region auditor-struct

// Validatable is the slice of the chain the auditor needs.
type Validatable interface {
	Validate() error
	Len() int
}

// Auditor runs the chain's integrity validation on a schedule. It only
// detects and reports: a corrupted chain is never auto-repaired, remediation
// is the operator's call via OnFailure.
type Auditor struct {
	cron      *cron.Cron
	chain     Validatable
	onFailure func(*ledger.ChainIntegrityError)
}

// New creates an auditor for the given chain.
func New(chain Validatable) *Auditor {
	return &Auditor{
		cron:  cron.New(cron.WithLocation(time.UTC)),
		chain: chain,
	}
}

// OnFailure registers a callback invoked with every integrity violation the
// scheduled run finds. Set before Start.
func (a *Auditor) OnFailure(fn func(*ledger.ChainIntegrityError)) {
	a.onFailure = fn
}

// #endregion

// #region run

// RunOnce validates the chain immediately and reports the result.
func (a *Auditor) RunOnce() error {
	start := time.Now()
	err := a.chain.Validate()
	if err == nil {
		log.Printf("[AUDIT] chain valid (%d blocks, %s)", a.chain.Len(), time.Since(start).Round(time.Millisecond))
		return nil
	}

	var ie *ledger.ChainIntegrityError
	if errors.As(err, &ie) {
		log.Printf("[AUDIT] INTEGRITY FAILURE at block %d (%s): %s", ie.Index, ie.Kind, ie.Detail)
		if a.onFailure != nil {
			a.onFailure(ie)
		}
	} else {
		log.Printf("[AUDIT] validation error: %v", err)
	}
	return err
}

// #endregion

// #region schedule

// Start schedules RunOnce on the given cron expression (UTC) and begins the
// scheduler.
func (a *Auditor) Start(spec string) error {
	if _, err := a.cron.AddFunc(spec, func() { _ = a.RunOnce() }); err != nil {
		return err
	}
	a.cron.Start()
	log.Printf("[AUDIT] scheduled chain validation (%s)", spec)
	return nil
}

// Stop halts the scheduler, waiting for a running audit to finish.
func (a *Auditor) Stop() {
	ctx := a.cron.Stop()
	<-ctx.Done()
}

// #endregion
