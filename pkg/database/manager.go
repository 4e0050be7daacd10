package database

import (
	"log"
	"sync"
	"time"
)

// Manager loop intervals.
const (
	ttlSweepInterval  = 5 * time.Minute
	saveSweepInterval = 3 * time.Minute
)

// manager runs the Database's two periodic background loops: TTL
// sweeping every 5 minutes, and metadata save + cursor reaping every 3
// minutes.
type manager struct {
	db      *Database
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
	startMu sync.Mutex
}

// StartManagerLoop launches the background TTL-sweep and
// save/cursor-reap loops. Calling it twice is a no-op.
func (db *Database) StartManagerLoop() {
	db.mgrOnce.startMu.Lock()
	defer db.mgrOnce.startMu.Unlock()
	if db.mgrOnce.started {
		return
	}
	db.mgrOnce.db = db
	db.mgrOnce.stopCh = make(chan struct{})
	db.mgrOnce.started = true

	db.mgrOnce.wg.Add(2)
	go db.mgrOnce.runTTLSweep()
	go db.mgrOnce.runSaveSweep()
}

// StopManagerLoop stops both background loops and waits for them to
// exit.
func (db *Database) StopManagerLoop() {
	db.mgrOnce.startMu.Lock()
	defer db.mgrOnce.startMu.Unlock()
	if !db.mgrOnce.started {
		return
	}
	close(db.mgrOnce.stopCh)
	db.mgrOnce.wg.Wait()
	db.mgrOnce.started = false
}

func (m *manager) runTTLSweep() {
	defer m.wg.Done()
	ticker := time.NewTicker(ttlSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.db.sweepTTL()
		case <-m.stopCh:
			return
		}
	}
}

func (m *manager) runSaveSweep() {
	defer m.wg.Done()
	ticker := time.NewTicker(saveSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := m.db.Save(); err != nil {
				log.Printf("ERROR: database: periodic save failed: %v", err)
			}
			reaped := m.db.cursors.SweepExpired(time.Now())
			if reaped > 0 {
				log.Printf("INFO: database: reaped %d expired cursors", reaped)
			}
		case <-m.stopCh:
			return
		}
	}
}

// sweepTTL walks every collection applying SweepExpired.
func (db *Database) sweepTTL() {
	for _, c := range db.Collections() {
		removed, err := c.SweepExpired(time.Now())
		if err != nil {
			log.Printf("ERROR: database: ttl sweep collection %s: %v", c.Name(), err)
			continue
		}
		if removed > 0 {
			log.Printf("INFO: database: ttl sweep removed %d documents from collection %s", removed, c.Name())
		}
	}
}
